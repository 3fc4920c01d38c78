package commerce

import "encoding/json"

// WishlistRow is a raw wishlist row as returned by the commerce API. A row
// carries either a product payload or a loose-stone payload; rows with
// neither are malformed and get dropped during normalization.
type WishlistRow struct {
	ID      string          `json:"id"`
	Product *ProductPayload `json:"product"`
	Diamond *DiamondPayload `json:"diamond"`
}

// ProductPayload is the catalog-product half of a wishlist row.
type ProductPayload struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	SKU          string            `json:"sku"`
	CategoryName string            `json:"categoryName"`
	Price        float64           `json:"price"`
	DefaultColor string            `json:"defaultColor"`
	Images       map[string]string `json:"variants"`
	HoverImages  map[string]string `json:"variantsHover"`
}

// DiamondPayload is the loose-stone half of a wishlist row.
type DiamondPayload struct {
	ID          string      `json:"id"`
	SKU         string      `json:"sku"`
	Shape       string      `json:"shape"`
	Carat       json.Number `json:"carat"`
	Price       float64     `json:"price"`
	Certificate string      `json:"certificate"`
	ImageURL    string      `json:"imageUrl"`
}

// AddWishlistRequest is the add-to-wishlist payload. Exactly one of
// ProductID or ProductSKU identifies the item; ItemType discriminates
// product vs diamond rows upstream.
type AddWishlistRequest struct {
	ProductID  string `json:"productId,omitempty"`
	ProductSKU string `json:"productSku,omitempty"`
	ItemType   string `json:"itemType"`
}

// Cart mirrors the remote cart shape.
type Cart struct {
	Items    []CartItem `json:"items"`
	Subtotal float64    `json:"subtotal"`
	Total    float64    `json:"total"`
}

// CartItem is one line in the remote cart.
type CartItem struct {
	ID       string  `json:"id"`
	SKU      string  `json:"sku"`
	Title    string  `json:"title"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// CartItemRequest adds an item to the cart.
type CartItemRequest struct {
	ProductSKU string `json:"productSku"`
	Quantity   int    `json:"quantity"`
	RingSize   string `json:"ringSize,omitempty"`
}

// Account is the commerce API's view of an authenticated customer.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// variantRow is the wire form of a product variant. Carat weights arrive as
// numbers or strings depending on the upstream feed, hence json.Number.
type variantRow struct {
	MetalCode         string      `json:"metalCode"`
	ShapeCode         string      `json:"shape_code"`
	CenterStoneWeight json.Number `json:"centerStoneWeight"`
	ProductSKU        string      `json:"productSku"`
	TotalPrice        float64     `json:"totalPrice"`
	DiamondType       string      `json:"diamondType"`
}

// variantSummaryRow is the wire form of the aggregated summary. The API
// wraps it in a one-element array under a capitalized key.
type variantSummaryRow struct {
	AvailableShapes    []string      `json:"availableShapes"`
	MetalTypes         []string      `json:"metalTypes"`
	CenterStoneWeights []json.Number `json:"centerStoneWeights"`
	RingSizes          []string      `json:"ringSizes"`
	DiamondType        string        `json:"diamondType"`
}

type variantResponse struct {
	Variants       []variantRow        `json:"variants"`
	VariantSummary []variantSummaryRow `json:"VariantSummary"`
}
