package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/example/jewel-storefront/internal/api/middleware"
	"github.com/example/jewel-storefront/internal/auth"
	"github.com/example/jewel-storefront/internal/commerce"
	"github.com/example/jewel-storefront/internal/wishlist"
	"github.com/google/uuid"
)

// hashToken creates a SHA-256 hash of the token for secure storage
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// LoginAPI is the slice of the commerce client that verifies credentials.
// The commerce API is the credential authority; the storefront never stores
// passwords.
type LoginAPI interface {
	Login(ctx context.Context, email, password string) (*commerce.Account, error)
}

// authSession records one issued refresh token, keyed by session id. Only the
// hash of the token is kept.
type authSession struct {
	userID           string
	email            string
	name             string
	refreshTokenHash string
	expiresAt        time.Time
}

// sessionRegistry holds the active refresh sessions in memory. Losing them on
// restart only forces a re-login, which the refresh flow handles anyway.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*authSession
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*authSession)}
}

func (r *sessionRegistry) put(id string, s *authSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = s
}

func (r *sessionRegistry) get(id string) (*authSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *sessionRegistry) delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *sessionRegistry) deleteByUser(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.userID == userID {
			delete(r.sessions, id)
		}
	}
}

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	commerce   LoginAPI
	jwtService *auth.JWTService
	wishlists  *wishlist.Manager
	registry   *sessionRegistry
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(commerceAPI LoginAPI, jwtService *auth.JWTService, wishlists *wishlist.Manager) *AuthHandlers {
	return &AuthHandlers{
		commerce:   commerceAPI,
		jwtService: jwtService,
		wishlists:  wishlists,
		registry:   newSessionRegistry(),
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	User    UserResponse `json:"user"`
	Message string       `json:"message,omitempty"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Login verifies credentials against the commerce API and issues tokens
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		respondJSONError(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	account, err := h.commerce.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, commerce.ErrUnauthorized) || errors.Is(err, commerce.ErrNotFound) {
			respondJSONError(w, "Invalid email or password", http.StatusUnauthorized)
			return
		}
		respondJSONError(w, "Login temporarily unavailable", http.StatusBadGateway)
		return
	}

	h.setAuthCookies(w, r, account.ID, account.Email, account.Name)

	// Warm the wishlist so the badge is right on the first page after login
	// (best-effort, don't fail login on error)
	_ = h.wishlists.StoreFor(account.ID).FetchAll(r.Context())

	respondJSON(w, http.StatusOK, AuthResponse{
		User: UserResponse{
			ID:    account.ID,
			Email: account.Email,
			Name:  account.Name,
		},
		Message: "Login successful",
	})
}

// Logout drops the user's sessions and local wishlist state
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if ok {
		h.registry.deleteByUser(claims.UserID)
		h.wishlists.Drop(claims.UserID)
	}

	// Clear cookies
	h.clearAuthCookies(w)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Logout successful",
	})
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshCookie, err := r.Cookie("refresh_token")
	if err != nil {
		respondJSONError(w, "No refresh token", http.StatusUnauthorized)
		return
	}

	sessionCookie, err := r.Cookie("session_id")
	if err != nil {
		h.clearAuthCookies(w)
		respondJSONError(w, "No session", http.StatusUnauthorized)
		return
	}

	// Validate JWT token
	userID, err := h.jwtService.ValidateRefreshToken(refreshCookie.Value)
	if err != nil {
		h.clearAuthCookies(w)
		respondJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	// Validate session exists and is not expired
	session, exists := h.registry.get(sessionCookie.Value)
	if !exists {
		h.clearAuthCookies(w)
		respondJSONError(w, "Session not found", http.StatusUnauthorized)
		return
	}

	if time.Now().After(session.expiresAt) {
		h.registry.delete(sessionCookie.Value)
		h.clearAuthCookies(w)
		respondJSONError(w, "Session expired", http.StatusUnauthorized)
		return
	}

	// Verify refresh token hash matches stored hash
	if hashToken(refreshCookie.Value) != session.refreshTokenHash || session.userID != userID {
		h.clearAuthCookies(w)
		respondJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	// Rotate: delete old session, issue fresh tokens under a new one
	h.registry.delete(sessionCookie.Value)
	h.setAuthCookies(w, r, session.userID, session.email, session.name)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Token refreshed",
	})
}

// Me returns the current authenticated user's information
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	respondJSON(w, http.StatusOK, UserResponse{
		ID:    claims.UserID,
		Email: claims.Email,
	})
}

// Helper methods

func (h *AuthHandlers) setAuthCookies(w http.ResponseWriter, r *http.Request, userID, email, name string) {
	// Generate access token
	accessToken, accessExpiry, _ := h.jwtService.GenerateAccessToken(userID, email)

	// Generate refresh token
	refreshToken, refreshExpiry, _ := h.jwtService.GenerateRefreshToken(userID)

	// Generate session ID
	sessionID := uuid.New().String()

	// Store session with hashed refresh token
	h.registry.put(sessionID, &authSession{
		userID:           userID,
		email:            email,
		name:             name,
		refreshTokenHash: hashToken(refreshToken),
		expiresAt:        refreshExpiry,
	})

	// Set cookies
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		Expires:  accessExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     "/auth/refresh",
		Expires:  refreshExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    sessionID,
		Path:     "/",
		Expires:  refreshExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandlers) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     "/auth/refresh",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
