package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/example/jewel-storefront/internal/auth"
	"github.com/example/jewel-storefront/internal/bus"
	"github.com/example/jewel-storefront/internal/catalog"
	"github.com/example/jewel-storefront/internal/commerce"
	"github.com/example/jewel-storefront/internal/session"
	"github.com/example/jewel-storefront/internal/wishlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================
// Fakes
// ============================================

type fakeWishlistAPI struct {
	mu         sync.Mutex
	rows       map[string][]commerce.WishlistRow
	nextID     int
	failDelete bool
}

func newFakeWishlistAPI() *fakeWishlistAPI {
	return &fakeWishlistAPI{rows: make(map[string][]commerce.WishlistRow)}
}

func (f *fakeWishlistAPI) seed(userID, itemID, title string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("wl-%d", f.nextID)
	f.rows[userID] = append(f.rows[userID], commerce.WishlistRow{
		ID:      id,
		Product: &commerce.ProductPayload{ID: itemID, Title: title, Price: 100},
	})
	return id
}

func (f *fakeWishlistAPI) ListWishlist(ctx context.Context, userID string) ([]commerce.WishlistRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]commerce.WishlistRow, len(f.rows[userID]))
	copy(out, f.rows[userID])
	return out, nil
}

func (f *fakeWishlistAPI) AddWishlistItem(ctx context.Context, userID string, req commerce.AddWishlistRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.rows[userID] = append(f.rows[userID], commerce.WishlistRow{
		ID:      fmt.Sprintf("wl-%d", f.nextID),
		Product: &commerce.ProductPayload{ID: req.ProductID, Title: "Added Item", Price: 100},
	})
	return nil
}

func (f *fakeWishlistAPI) DeleteWishlistItem(ctx context.Context, userID, wishlistID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return &commerce.APIError{Status: 500, Message: "backend down"}
	}
	kept := f.rows[userID][:0]
	for _, row := range f.rows[userID] {
		if row.ID != wishlistID {
			kept = append(kept, row)
		}
	}
	f.rows[userID] = kept
	return nil
}

type fakeVariantSource struct {
	variants []catalog.Variant
	summary  catalog.Summary
	err      error
}

func (f *fakeVariantSource) ProductVariants(ctx context.Context, productID string) ([]catalog.Variant, catalog.Summary, error) {
	if f.err != nil {
		return nil, catalog.Summary{}, f.err
	}
	return f.variants, f.summary, nil
}

type fakeCartAPI struct {
	cart *commerce.Cart
	err  error
}

func (f *fakeCartAPI) GetCart(ctx context.Context, userID string) (*commerce.Cart, error) {
	return f.cart, f.err
}

func (f *fakeCartAPI) AddCartItem(ctx context.Context, userID string, req commerce.CartItemRequest) (*commerce.Cart, error) {
	return f.cart, f.err
}

func (f *fakeCartAPI) UpdateCartItemQuantity(ctx context.Context, userID, itemID string, quantity int) (*commerce.Cart, error) {
	return f.cart, f.err
}

func (f *fakeCartAPI) RemoveCartItem(ctx context.Context, userID, itemID string) error {
	return f.err
}

type fakeLoginAPI struct {
	accounts map[string]string // email -> password
}

func (f *fakeLoginAPI) Login(ctx context.Context, email, password string) (*commerce.Account, error) {
	if pw, ok := f.accounts[email]; ok && pw == password {
		return &commerce.Account{ID: "acct-" + email, Email: email, Name: "Test Customer"}, nil
	}
	return nil, commerce.ErrUnauthorized
}

type broadcastCall struct {
	signalType string
	userID     string
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (f *fakeBroadcaster) Broadcast(ctx context.Context, signalType, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, broadcastCall{signalType, userID})
	return nil
}

func (f *fakeBroadcaster) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// ============================================
// Harness
// ============================================

type testEnv struct {
	router      http.Handler
	jwtService  *auth.JWTService
	wishlistAPI *fakeWishlistAPI
	variants    *fakeVariantSource
	broadcaster *fakeBroadcaster
	wishlists   *wishlist.Manager
}

func newTestEnv() *testEnv {
	env := &testEnv{
		jwtService:  auth.NewJWTService("test-secret-key", 15*time.Minute, 7*24*time.Hour),
		wishlistAPI: newFakeWishlistAPI(),
		variants:    &fakeVariantSource{},
		broadcaster: &fakeBroadcaster{},
	}

	env.wishlists = wishlist.NewManager(env.wishlistAPI, bus.New())

	handlers := NewHandlers(
		env.wishlists,
		session.NewMemoryStore(),
		env.variants,
		&fakeCartAPI{cart: &commerce.Cart{}},
		env.broadcaster,
		time.Hour,
	)
	authHandlers := NewAuthHandlers(
		&fakeLoginAPI{accounts: map[string]string{"jane@example.com": "correct-horse"}},
		env.jwtService,
		env.wishlists,
	)

	env.router = NewRouter(handlers, authHandlers, env.jwtService)
	return env
}

func (env *testEnv) request(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		token, _, err := env.jwtService.GenerateAccessToken(userID, userID+"@example.com")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeCheckout(t *testing.T, rec *httptest.ResponseRecorder) checkoutSessionResponse {
	t.Helper()
	var resp checkoutSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// ============================================
// Checkout Session Tests
// ============================================

func TestCheckoutSession_Create(t *testing.T) {
	env := newTestEnv()

	rec := env.request(t, http.MethodPost, "/checkout/sessions", "user-1", nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeCheckout(t, rec)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, 0, resp.Current)
	assert.Equal(t, 0, resp.MaxVisited)
	assert.Equal(t, "/cart", resp.Path)
	assert.Len(t, resp.Steps, 3)
	assert.Equal(t, []bool{true, false, false}, resp.Clickable)
}

func TestCheckoutSession_CreateFromPath(t *testing.T) {
	env := newTestEnv()

	rec := env.request(t, http.MethodPost, "/checkout/sessions", "user-1", map[string]string{"path": "/checkout"})

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeCheckout(t, rec)
	assert.Equal(t, 1, resp.Current)
	assert.Equal(t, 1, resp.MaxVisited)
	assert.Equal(t, "/checkout", resp.Path)
}

func TestCheckoutSession_AdvanceAndRetreat(t *testing.T) {
	env := newTestEnv()

	created := decodeCheckout(t, env.request(t, http.MethodPost, "/checkout/sessions", "user-1", nil))
	base := "/checkout/sessions/" + created.ID

	rec := env.request(t, http.MethodPost, base+"/advance", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeCheckout(t, rec)
	assert.Equal(t, 1, resp.Current)
	assert.Equal(t, "/checkout", resp.Path)

	resp = decodeCheckout(t, env.request(t, http.MethodPost, base+"/advance", "user-1", nil))
	assert.Equal(t, 2, resp.Current)
	assert.Equal(t, "/payment", resp.Path)

	// Advancing past the last step stays put
	resp = decodeCheckout(t, env.request(t, http.MethodPost, base+"/advance", "user-1", nil))
	assert.Equal(t, 2, resp.Current)

	resp = decodeCheckout(t, env.request(t, http.MethodPost, base+"/retreat", "user-1", nil))
	assert.Equal(t, 1, resp.Current)
	assert.Equal(t, 2, resp.MaxVisited)
}

func TestCheckoutSession_SkipAheadIgnored(t *testing.T) {
	env := newTestEnv()

	created := decodeCheckout(t, env.request(t, http.MethodPost, "/checkout/sessions", "user-1", nil))
	base := "/checkout/sessions/" + created.ID

	rec := env.request(t, http.MethodPost, base+"/goto", "user-1", map[string]int{"step": 2})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeCheckout(t, rec)
	assert.Equal(t, 0, resp.Current)
	assert.Equal(t, 0, resp.MaxVisited)
}

func TestCheckoutSession_GoToVisitedStep(t *testing.T) {
	env := newTestEnv()

	created := decodeCheckout(t, env.request(t, http.MethodPost, "/checkout/sessions", "user-1", nil))
	base := "/checkout/sessions/" + created.ID

	env.request(t, http.MethodPost, base+"/advance", "user-1", nil)
	env.request(t, http.MethodPost, base+"/advance", "user-1", nil)

	resp := decodeCheckout(t, env.request(t, http.MethodPost, base+"/goto", "user-1", map[string]int{"step": 0}))
	assert.Equal(t, 0, resp.Current)
	assert.Equal(t, 2, resp.MaxVisited)

	// Progress survives: the user can jump straight back to payment
	resp = decodeCheckout(t, env.request(t, http.MethodPost, base+"/goto", "user-1", map[string]int{"step": 2}))
	assert.Equal(t, 2, resp.Current)
}

func TestCheckoutSession_ProgressSurvivesReload(t *testing.T) {
	env := newTestEnv()

	created := decodeCheckout(t, env.request(t, http.MethodPost, "/checkout/sessions", "user-1", nil))
	base := "/checkout/sessions/" + created.ID

	env.request(t, http.MethodPost, base+"/advance", "user-1", nil)

	resp := decodeCheckout(t, env.request(t, http.MethodGet, base, "user-1", nil))
	assert.Equal(t, 1, resp.Current)
	assert.Equal(t, 1, resp.MaxVisited)
	assert.Equal(t, []bool{true, true, false}, resp.Clickable)
	assert.Equal(t, []bool{true, false, false}, resp.Completed)
}

func TestCheckoutSession_OtherUserForbidden(t *testing.T) {
	env := newTestEnv()

	created := decodeCheckout(t, env.request(t, http.MethodPost, "/checkout/sessions", "user-1", nil))

	rec := env.request(t, http.MethodGet, "/checkout/sessions/"+created.ID, "user-2", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCheckoutSession_NotFound(t *testing.T) {
	env := newTestEnv()

	rec := env.request(t, http.MethodGet, "/checkout/sessions/no-such-session", "user-1", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutSession_Delete(t *testing.T) {
	env := newTestEnv()

	created := decodeCheckout(t, env.request(t, http.MethodPost, "/checkout/sessions", "user-1", nil))
	base := "/checkout/sessions/" + created.ID

	rec := env.request(t, http.MethodDelete, base, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, base, "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================
// Wishlist Tests
// ============================================

func TestWishlist_RequiresAuth(t *testing.T) {
	env := newTestEnv()

	rec := env.request(t, http.MethodGet, "/wishlist", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWishlist_Get(t *testing.T) {
	env := newTestEnv()
	env.wishlistAPI.seed("user-1", "prod-1", "Solitaire Ring")
	env.wishlistAPI.seed("user-1", "prod-2", "Tennis Bracelet")

	rec := env.request(t, http.MethodGet, "/wishlist", "user-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp wishlistResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "Solitaire Ring", resp.Items[0].Title)
}

func TestWishlist_AddBroadcasts(t *testing.T) {
	env := newTestEnv()

	rec := env.request(t, http.MethodPost, "/wishlist/items", "user-1",
		commerce.AddWishlistRequest{ProductID: "prod-9", ItemType: "product"})

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp wishlistResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	require.Equal(t, 1, env.broadcaster.callCount())
	assert.Equal(t, "wishlist.changed", env.broadcaster.calls[0].signalType)
	assert.Equal(t, "user-1", env.broadcaster.calls[0].userID)
}

func TestWishlist_AddWithoutIdentifierRejected(t *testing.T) {
	env := newTestEnv()

	rec := env.request(t, http.MethodPost, "/wishlist/items", "user-1",
		commerce.AddWishlistRequest{ItemType: "product"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, env.broadcaster.callCount())
}

func TestWishlist_Remove(t *testing.T) {
	env := newTestEnv()
	id := env.wishlistAPI.seed("user-1", "prod-1", "Solitaire Ring")
	env.wishlistAPI.seed("user-1", "prod-2", "Tennis Bracelet")

	rec := env.request(t, http.MethodDelete, "/wishlist/items/"+id, "user-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp wishlistResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "Tennis Bracelet", resp.Items[0].Title)
	assert.Equal(t, 1, env.broadcaster.callCount())
}

func TestWishlist_RemoveFailureRestoresItem(t *testing.T) {
	env := newTestEnv()
	id := env.wishlistAPI.seed("user-1", "prod-1", "Solitaire Ring")

	// Prime the store
	env.request(t, http.MethodGet, "/wishlist", "user-1", nil)

	env.wishlistAPI.failDelete = true
	rec := env.request(t, http.MethodDelete, "/wishlist/items/"+id, "user-1", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, 0, env.broadcaster.callCount())

	// The compensating refetch restored the item the backend still holds
	env.wishlistAPI.failDelete = false
	getRec := env.request(t, http.MethodGet, "/wishlist", "user-1", nil)
	var resp wishlistResponse
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestWishlist_Contains(t *testing.T) {
	env := newTestEnv()
	env.wishlistAPI.seed("user-1", "prod-1", "Solitaire Ring")
	env.request(t, http.MethodGet, "/wishlist", "user-1", nil)

	rec := env.request(t, http.MethodGet, "/wishlist/contains/prod-1", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"contains":true`)

	rec = env.request(t, http.MethodGet, "/wishlist/contains/prod-99", "user-1", nil)
	assert.Contains(t, rec.Body.String(), `"contains":false`)
}

// ============================================
// Variant Tests
// ============================================

func setupVariants(env *testEnv) {
	env.variants.variants = []catalog.Variant{
		{MetalCode: "14Y", ShapeCode: "RND", CenterStoneWeight: 1.0, ProductSKU: "RING-14Y-RND-100", TotalPrice: 500},
		{MetalCode: "14Y", ShapeCode: "RND", CenterStoneWeight: 1.5, ProductSKU: "RING-14Y-RND-150", TotalPrice: 900},
		{MetalCode: "18W", ShapeCode: "OVL", CenterStoneWeight: 1.0, ProductSKU: "RING-18W-OVL-100", TotalPrice: 750},
	}
	env.variants.summary = catalog.Summary{
		AvailableShapes:    []string{"RND", "OVL"},
		MetalTypes:         []string{"14Y", "18W"},
		CenterStoneWeights: []float64{1.0, 1.5},
		RingSizes:          []string{"5", "6", "7"},
	}
}

func TestVariants_GetSeedsDefaults(t *testing.T) {
	env := newTestEnv()
	setupVariants(env)

	rec := env.request(t, http.MethodGet, "/products/prod-1/variants", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp variantViewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Variants, 3)
	require.True(t, resp.Available)
	assert.Equal(t, "RING-14Y-RND-100", resp.Variant.ProductSKU)
	require.NotNil(t, resp.Selection.Metal)
	assert.Equal(t, "14Y", *resp.Selection.Metal)
}

func TestVariants_ResolveStringCarat(t *testing.T) {
	env := newTestEnv()
	setupVariants(env)

	rec := env.request(t, http.MethodPost, "/products/prod-1/resolve", "", map[string]any{
		"metal": "14Y",
		"shape": "RND",
		"carat": "1.5",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp variantViewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Available)
	assert.Equal(t, "RING-14Y-RND-150", resp.Variant.ProductSKU)
	assert.InDelta(t, 900, resp.Variant.TotalPrice, 0.001)
}

func TestVariants_ResolveUnavailableCombination(t *testing.T) {
	env := newTestEnv()
	setupVariants(env)

	rec := env.request(t, http.MethodPost, "/products/prod-1/resolve", "", map[string]any{
		"metal": "18W",
		"shape": "RND",
		"carat": 1.5,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp variantViewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Available)
	assert.Nil(t, resp.Variant)
}

func TestVariants_RingSizeDoesNotAffectResolution(t *testing.T) {
	env := newTestEnv()
	setupVariants(env)

	rec := env.request(t, http.MethodPost, "/products/prod-1/resolve", "", map[string]any{
		"metal":    "14Y",
		"shape":    "RND",
		"carat":    1.0,
		"ringSize": "7",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp variantViewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Available)
	assert.Equal(t, "RING-14Y-RND-100", resp.Variant.ProductSKU)
	require.NotNil(t, resp.Selection.RingSize)
	assert.Equal(t, "7", *resp.Selection.RingSize)
}

func TestVariants_UpstreamFailure(t *testing.T) {
	env := newTestEnv()
	env.variants.err = &commerce.APIError{Status: 500, Message: "backend down"}

	rec := env.request(t, http.MethodGet, "/products/prod-1/variants", "", nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

// ============================================
// Auth Tests
// ============================================

func TestLogin_Success(t *testing.T) {
	env := newTestEnv()

	rec := env.request(t, http.MethodPost, "/auth/login", "",
		LoginRequest{Email: "jane@example.com", Password: "correct-horse"})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "jane@example.com", resp.User.Email)

	cookies := rec.Result().Cookies()
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "access_token")
	assert.Contains(t, names, "refresh_token")
	assert.Contains(t, names, "session_id")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv()

	rec := env.request(t, http.MethodPost, "/auth/login", "",
		LoginRequest{Email: "jane@example.com", Password: "wrong"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password")
}

func TestLogin_MissingFields(t *testing.T) {
	env := newTestEnv()

	rec := env.request(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "jane@example.com"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMe_ReturnsClaims(t *testing.T) {
	env := newTestEnv()

	rec := env.request(t, http.MethodGet, "/auth/me", "user-7", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "user-7", resp.ID)
}

func TestLogout_ClearsWishlistState(t *testing.T) {
	env := newTestEnv()
	env.wishlistAPI.seed("user-1", "prod-1", "Solitaire Ring")
	env.request(t, http.MethodGet, "/wishlist", "user-1", nil)
	require.Equal(t, 1, env.wishlists.StoreFor("user-1").Count())

	rec := env.request(t, http.MethodPost, "/auth/logout", "user-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	// A fresh store starts empty until its next fetch
	assert.Equal(t, 0, env.wishlists.StoreFor("user-1").Count())
}
