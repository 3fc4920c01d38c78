package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/example/jewel-storefront/internal/api/middleware"
	"github.com/example/jewel-storefront/internal/catalog"
	"github.com/example/jewel-storefront/internal/checkout"
	"github.com/example/jewel-storefront/internal/commerce"
	"github.com/example/jewel-storefront/internal/infrastructure/kafka"
	"github.com/example/jewel-storefront/internal/session"
	"github.com/example/jewel-storefront/internal/wishlist"
	"github.com/google/uuid"
)

// CartAPI is the slice of the commerce client the cart endpoints proxy to.
type CartAPI interface {
	GetCart(ctx context.Context, userID string) (*commerce.Cart, error)
	AddCartItem(ctx context.Context, userID string, req commerce.CartItemRequest) (*commerce.Cart, error)
	UpdateCartItemQuantity(ctx context.Context, userID, itemID string, quantity int) (*commerce.Cart, error)
	RemoveCartItem(ctx context.Context, userID, itemID string) error
}

// Broadcaster pushes a change signal to the other storefront instances.
// A nil Broadcaster disables cross-instance fan-out.
type Broadcaster interface {
	Broadcast(ctx context.Context, signalType, userID string) error
}

type Handlers struct {
	wishlists  *wishlist.Manager
	sessions   session.Store
	variants   catalog.VariantSource
	cart       CartAPI
	broadcast  Broadcaster
	sessionTTL time.Duration
}

func NewHandlers(wishlists *wishlist.Manager, sessions session.Store, variants catalog.VariantSource, cart CartAPI, broadcast Broadcaster, sessionTTL time.Duration) *Handlers {
	return &Handlers{
		wishlists:  wishlists,
		sessions:   sessions,
		variants:   variants,
		cart:       cart,
		broadcast:  broadcast,
		sessionTTL: sessionTTL,
	}
}

// Wishlist Handlers

type wishlistResponse struct {
	Items []wishlist.Entry `json:"items"`
	Count int              `json:"count"`
	Error string           `json:"error,omitempty"`
}

func snapshotWishlist(s *wishlist.Store) wishlistResponse {
	resp := wishlistResponse{Items: s.Entries()}
	resp.Count = len(resp.Items)
	if err := s.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// GetWishlist fetches and returns the user's wishlist. A failed fetch still
// returns the previous snapshot, with the error noted, so the caller can keep
// rendering what it had.
func (h *Handlers) GetWishlist(w http.ResponseWriter, r *http.Request) {
	store := h.wishlists.StoreFor(getUserID(r))
	store.FetchAll(r.Context())
	respondJSON(w, http.StatusOK, snapshotWishlist(store))
}

// RefreshWishlist re-pulls the wishlist from the commerce API on demand.
func (h *Handlers) RefreshWishlist(w http.ResponseWriter, r *http.Request) {
	store := h.wishlists.StoreFor(getUserID(r))
	if err := store.FetchAll(r.Context()); err != nil {
		respondJSONError(w, "Wishlist refresh failed", http.StatusBadGateway)
		return
	}
	respondJSON(w, http.StatusOK, snapshotWishlist(store))
}

func (h *Handlers) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r)

	var req commerce.AddWishlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProductID == "" && req.ProductSKU == "" {
		respondJSONError(w, "productId or productSku is required", http.StatusBadRequest)
		return
	}

	store := h.wishlists.StoreFor(userID)
	if err := store.Add(r.Context(), req); err != nil {
		respondCommerceError(w, err)
		return
	}

	h.broadcastWishlistChanged(r.Context(), userID)
	respondJSON(w, http.StatusCreated, snapshotWishlist(store))
}

func (h *Handlers) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r)
	wishlistID := extractPathParam(r.URL.Path, "/wishlist/items/")
	if wishlistID == "" {
		respondJSONError(w, "Wishlist item id is required", http.StatusBadRequest)
		return
	}

	store := h.wishlists.StoreFor(userID)
	if err := store.Remove(r.Context(), wishlistID); err != nil {
		respondCommerceError(w, err)
		return
	}

	h.broadcastWishlistChanged(r.Context(), userID)
	respondJSON(w, http.StatusOK, snapshotWishlist(store))
}

// WishlistContains reports whether a catalog item is wishlisted, for the
// heart toggle on product cards.
func (h *Handlers) WishlistContains(w http.ResponseWriter, r *http.Request) {
	itemID := extractPathParam(r.URL.Path, "/wishlist/contains/")
	store := h.wishlists.StoreFor(getUserID(r))
	respondJSON(w, http.StatusOK, map[string]bool{
		"contains": store.Contains(itemID),
	})
}

func (h *Handlers) broadcastWishlistChanged(ctx context.Context, userID string) {
	if h.broadcast == nil {
		return
	}
	if err := h.broadcast.Broadcast(ctx, kafka.SignalWishlistChanged, userID); err != nil {
		log.Printf("[API] Wishlist broadcast failed for %s: %v", userID, err)
	}
}

// Checkout Session Handlers

type checkoutSessionResponse struct {
	ID         string          `json:"id"`
	Steps      []checkout.Step `json:"steps"`
	Current    int             `json:"current"`
	MaxVisited int             `json:"max_visited"`
	Path       string          `json:"path"`
	Completed  []bool          `json:"completed"`
	Clickable  []bool          `json:"clickable"`
}

func checkoutView(id string, c *checkout.Controller) checkoutSessionResponse {
	steps := c.Steps()
	resp := checkoutSessionResponse{
		ID:         id,
		Steps:      steps,
		Current:    c.Current(),
		MaxVisited: c.MaxVisited(),
		Path:       checkout.PathForStep(c.Current()),
		Completed:  make([]bool, len(steps)),
		Clickable:  make([]bool, len(steps)),
	}
	for i := range steps {
		resp.Completed[i] = c.IsStepComplete(i)
		resp.Clickable[i] = c.IsStepClickable(i)
	}
	return resp
}

func (h *Handlers) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r)

	var req struct {
		Path string `json:"path"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	start := 0
	if req.Path != "" {
		start = checkout.StepForPath(req.Path)
	}

	controller := checkout.NewController(checkout.DefaultSteps(), start)

	now := time.Now()
	sess := &session.CheckoutSession{
		ID:         uuid.New().String(),
		UserID:     userID,
		Current:    controller.Current(),
		MaxVisited: controller.MaxVisited(),
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(h.sessionTTL),
	}
	if err := h.sessions.Save(sess); err != nil {
		respondJSONError(w, "Failed to save checkout session", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, checkoutView(sess.ID, controller))
}

func (h *Handlers) GetCheckoutSession(w http.ResponseWriter, r *http.Request) {
	sess, controller, ok := h.loadCheckoutSession(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, checkoutView(sess.ID, controller))
}

// AdvanceCheckout moves the session forward one step. This is the only
// transition that can raise the furthest-reached mark.
func (h *Handlers) AdvanceCheckout(w http.ResponseWriter, r *http.Request) {
	h.mutateCheckout(w, r, func(c *checkout.Controller) { c.Advance() })
}

// RetreatCheckout moves the session one step back.
func (h *Handlers) RetreatCheckout(w http.ResponseWriter, r *http.Request) {
	h.mutateCheckout(w, r, func(c *checkout.Controller) { c.Retreat() })
}

// GoToCheckoutStep activates a previously reached step. Requests ahead of the
// furthest-reached step leave the session unchanged; the response reflects
// whatever state the session ends up in.
func (h *Handlers) GoToCheckoutStep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Step int `json:"step"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.mutateCheckout(w, r, func(c *checkout.Controller) { c.GoToStep(req.Step) })
}

func (h *Handlers) DeleteCheckoutSession(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := h.loadCheckoutSession(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Delete(sess.ID); err != nil {
		respondJSONError(w, "Failed to delete checkout session", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Checkout session deleted"})
}

func (h *Handlers) mutateCheckout(w http.ResponseWriter, r *http.Request, apply func(*checkout.Controller)) {
	sess, controller, ok := h.loadCheckoutSession(w, r)
	if !ok {
		return
	}

	apply(controller)

	sess.Current = controller.Current()
	sess.MaxVisited = controller.MaxVisited()
	sess.UpdatedAt = time.Now()
	sess.ExpiresAt = sess.UpdatedAt.Add(h.sessionTTL)
	if err := h.sessions.Save(sess); err != nil {
		respondJSONError(w, "Failed to save checkout session", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, checkoutView(sess.ID, controller))
}

// loadCheckoutSession resolves the session in the URL, enforces ownership and
// rebuilds its step controller. On failure it writes the error response and
// returns ok=false.
func (h *Handlers) loadCheckoutSession(w http.ResponseWriter, r *http.Request) (*session.CheckoutSession, *checkout.Controller, bool) {
	id := extractPathParam(r.URL.Path, "/checkout/sessions/")
	for _, action := range []string{"/advance", "/retreat", "/goto"} {
		id = strings.TrimSuffix(id, action)
	}

	sess, found, err := h.sessions.Get(id)
	if err != nil {
		respondJSONError(w, "Failed to load checkout session", http.StatusInternalServerError)
		return nil, nil, false
	}
	if !found {
		respondJSONError(w, "Checkout session not found", http.StatusNotFound)
		return nil, nil, false
	}
	if sess.UserID != getUserID(r) {
		respondJSONError(w, "Forbidden", http.StatusForbidden)
		return nil, nil, false
	}

	return sess, checkout.Restore(checkout.DefaultSteps(), sess.Current, sess.MaxVisited), true
}

// Variant Handlers

type selectionResponse struct {
	Metal    *string  `json:"metal"`
	Shape    *string  `json:"shape"`
	Carat    *float64 `json:"carat"`
	RingSize *string  `json:"ringSize"`
}

func selectionView(sel catalog.Selection) selectionResponse {
	return selectionResponse{
		Metal:    sel.Metal,
		Shape:    sel.Shape,
		Carat:    sel.Carat,
		RingSize: sel.RingSize,
	}
}

type variantViewResponse struct {
	Variants  []catalog.Variant `json:"variants"`
	Summary   catalog.Summary   `json:"summary"`
	Selection selectionResponse `json:"selection"`
	Variant   *catalog.Variant  `json:"variant"`
	Available bool              `json:"available"`
}

func variantView(v *catalog.ProductView) variantViewResponse {
	resp := variantViewResponse{
		Variants:  v.Variants(),
		Summary:   v.Summary(),
		Selection: selectionView(v.Selection()),
	}
	if variant, ok := v.Resolution(); ok {
		resp.Variant = &variant
		resp.Available = true
	}
	return resp
}

// GetProductVariants fetches a product's variants and resolves the default
// selection, giving the product page everything it needs in one call.
func (h *Handlers) GetProductVariants(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSuffix(extractPathParam(r.URL.Path, "/products/"), "/variants")

	view := catalog.NewProductView(h.variants, productID)
	if err := view.LoadVariants(r.Context()); err != nil {
		respondCommerceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, variantView(view))
}

// ResolveVariant resolves a user's attribute selection against a product's
// variants. Omitted attributes fall back to the seeded defaults; an
// unavailable combination is a normal response with available=false, not an
// error.
func (h *Handlers) ResolveVariant(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSuffix(extractPathParam(r.URL.Path, "/products/"), "/resolve")

	var req struct {
		Metal    *string         `json:"metal"`
		Shape    *string         `json:"shape"`
		Carat    json.RawMessage `json:"carat"`
		RingSize *string         `json:"ringSize"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	view := catalog.NewProductView(h.variants, productID)
	if err := view.LoadVariants(r.Context()); err != nil {
		respondCommerceError(w, err)
		return
	}

	if req.Metal != nil {
		view.SelectMetal(*req.Metal)
	}
	if req.Shape != nil {
		view.SelectShape(*req.Shape)
	}
	if len(req.Carat) > 0 {
		view.SelectCarat(decodeCarat(req.Carat))
	}
	if req.RingSize != nil {
		view.SelectRingSize(*req.RingSize)
	}

	respondJSON(w, http.StatusOK, variantView(view))
}

// decodeCarat turns the raw carat JSON into the value ParseCarat expects,
// keeping numbers as json.Number so no precision is lost on the way.
func decodeCarat(raw json.RawMessage) any {
	var value any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		return nil
	}
	return value
}

// Cart Handlers

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cart.GetCart(r.Context(), getUserID(r))
	if err != nil {
		respondCommerceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req commerce.CartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	cart, err := h.cart.AddCartItem(r.Context(), getUserID(r), req)
	if err != nil {
		respondCommerceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, cart)
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	itemID := extractPathParam(r.URL.Path, "/cart/items/")

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Quantity <= 0 {
		respondJSONError(w, "Quantity must be positive", http.StatusBadRequest)
		return
	}

	cart, err := h.cart.UpdateCartItemQuantity(r.Context(), getUserID(r), itemID, req.Quantity)
	if err != nil {
		respondCommerceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	itemID := extractPathParam(r.URL.Path, "/cart/items/")
	if err := h.cart.RemoveCartItem(r.Context(), getUserID(r), itemID); err != nil {
		respondCommerceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}

// respondCommerceError maps upstream commerce API failures onto the
// storefront's own status codes.
func respondCommerceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, commerce.ErrNotFound):
		respondJSONError(w, "Not found", http.StatusNotFound)
	case errors.Is(err, commerce.ErrUnauthorized):
		respondJSONError(w, "Unauthorized", http.StatusUnauthorized)
	default:
		respondJSONError(w, "Upstream commerce API error", http.StatusBadGateway)
	}
}

// getUserID extracts user ID from JWT context or falls back to X-User-ID header
func getUserID(r *http.Request) string {
	// First try to get from JWT context
	if userID := middleware.GetUserID(r.Context()); userID != "" {
		return userID
	}

	// Fall back to X-User-ID header for backward compatibility
	return r.Header.Get("X-User-ID")
}
