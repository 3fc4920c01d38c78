package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/jewel-storefront/internal/catalog"
)

// Client talks to the remote commerce API. It is the storefront's only
// outbound dependency; every failure is returned to the caller, never
// surfaced as a panic or a global handler.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a commerce API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// ListWishlist fetches all wishlist rows for a user. The response shape
// varies between deployments (a bare array, or an object wrapping the rows
// under "items" or "wishlist"), so extraction is defensive.
func (c *Client) ListWishlist(ctx context.Context, userID string) ([]WishlistRow, error) {
	body, err := c.do(ctx, http.MethodGet, "/wishlist", userID, nil)
	if err != nil {
		return nil, err
	}
	return decodeWishlistRows(body)
}

// AddWishlistItem adds a product or diamond to the user's wishlist.
func (c *Client) AddWishlistItem(ctx context.Context, userID string, req AddWishlistRequest) error {
	_, err := c.do(ctx, http.MethodPost, "/wishlist", userID, req)
	return err
}

// DeleteWishlistItem removes a wishlist row by its server-assigned id.
func (c *Client) DeleteWishlistItem(ctx context.Context, userID, wishlistID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/wishlist/"+url.PathEscape(wishlistID), userID, nil)
	return err
}

// GetCart fetches the user's cart with line items and totals.
func (c *Client) GetCart(ctx context.Context, userID string) (*Cart, error) {
	body, err := c.do(ctx, http.MethodGet, "/cart", userID, nil)
	if err != nil {
		return nil, err
	}
	var cart Cart
	if err := json.Unmarshal(body, &cart); err != nil {
		return nil, fmt.Errorf("parsing cart response: %w", err)
	}
	return &cart, nil
}

// AddCartItem adds an item to the cart and returns the updated cart.
func (c *Client) AddCartItem(ctx context.Context, userID string, req CartItemRequest) (*Cart, error) {
	body, err := c.do(ctx, http.MethodPost, "/cart/items", userID, req)
	if err != nil {
		return nil, err
	}
	var cart Cart
	if err := json.Unmarshal(body, &cart); err != nil {
		return nil, fmt.Errorf("parsing cart response: %w", err)
	}
	return &cart, nil
}

// UpdateCartItemQuantity sets the quantity of a cart line by item id.
func (c *Client) UpdateCartItemQuantity(ctx context.Context, userID, itemID string, quantity int) (*Cart, error) {
	req := struct {
		Quantity int `json:"quantity"`
	}{Quantity: quantity}
	body, err := c.do(ctx, http.MethodPatch, "/cart/items/"+url.PathEscape(itemID), userID, req)
	if err != nil {
		return nil, err
	}
	var cart Cart
	if err := json.Unmarshal(body, &cart); err != nil {
		return nil, fmt.Errorf("parsing cart response: %w", err)
	}
	return &cart, nil
}

// RemoveCartItem deletes a cart line by item id.
func (c *Client) RemoveCartItem(ctx context.Context, userID, itemID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/cart/items/"+url.PathEscape(itemID), userID, nil)
	return err
}

// ProductVariants fetches the variant list and aggregated summary for a
// product. Carat weights are coerced to numbers here so the rest of the
// storefront only ever sees float64.
func (c *Client) ProductVariants(ctx context.Context, productID string) ([]catalog.Variant, catalog.Summary, error) {
	body, err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(productID)+"/variants", "", nil)
	if err != nil {
		return nil, catalog.Summary{}, err
	}

	var resp variantResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, catalog.Summary{}, fmt.Errorf("parsing variant response: %w", err)
	}

	variants := make([]catalog.Variant, 0, len(resp.Variants))
	for _, row := range resp.Variants {
		carat, ok := catalog.ParseCarat(row.CenterStoneWeight)
		if !ok {
			continue
		}
		variants = append(variants, catalog.Variant{
			MetalCode:         row.MetalCode,
			ShapeCode:         row.ShapeCode,
			CenterStoneWeight: carat,
			ProductSKU:        row.ProductSKU,
			TotalPrice:        row.TotalPrice,
			DiamondType:       row.DiamondType,
		})
	}

	var summary catalog.Summary
	if len(resp.VariantSummary) > 0 {
		raw := resp.VariantSummary[0]
		summary = catalog.Summary{
			AvailableShapes: raw.AvailableShapes,
			MetalTypes:      raw.MetalTypes,
			RingSizes:       raw.RingSizes,
			DiamondType:     raw.DiamondType,
		}
		for _, w := range raw.CenterStoneWeights {
			if carat, ok := catalog.ParseCarat(w); ok {
				summary.CenterStoneWeights = append(summary.CenterStoneWeights, carat)
			}
		}
	}

	return variants, summary, nil
}

// Login verifies customer credentials against the commerce API.
func (c *Client) Login(ctx context.Context, email, password string) (*Account, error) {
	req := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}

	body, err := c.do(ctx, http.MethodPost, "/auth/login", "", req)
	if err != nil {
		return nil, err
	}
	var account Account
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("parsing login response: %w", err)
	}
	return &account, nil
}

// do executes one request and returns the response body. Errors are mapped
// by status code; bodies are always drained so connections get reused.
func (c *Client) do(ctx context.Context, method, path, userID string, payload any) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if userID != "" {
		req.Header.Set("X-Customer-ID", userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("commerce API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		json.Unmarshal(body, &apiErr) // best effort
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error
		}
		return nil, statusError(resp.StatusCode, msg)
	}

	return body, nil
}

// decodeWishlistRows extracts wishlist rows from the opaque response body,
// tolerating a bare array or rows nested under an items/wishlist key.
func decodeWishlistRows(body []byte) ([]WishlistRow, error) {
	var rows []WishlistRow
	if err := json.Unmarshal(body, &rows); err == nil {
		return rows, nil
	}

	var wrapped struct {
		Items    []WishlistRow `json:"items"`
		Wishlist []WishlistRow `json:"wishlist"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("parsing wishlist response: %w", err)
	}
	if wrapped.Items != nil {
		return wrapped.Items, nil
	}
	return wrapped.Wishlist, nil
}
