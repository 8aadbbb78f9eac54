package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/imgshare/apiserver/internal/services"
	"github.com/rs/zerolog"
)

const defaultTokenTTL = 24 * time.Hour

// Credentials registers and verifies users.
type Credentials interface {
	Register(ctx context.Context, username, password string) (bool, error)
	Verify(ctx context.Context, username, password string) (bool, error)
}

// AuthHandler provides JWT authentication endpoints.
type AuthHandler struct {
	credentials Credentials
	secret      []byte
	tokenTTL    time.Duration
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(credentials Credentials, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		credentials: credentials,
		secret:      []byte(jwtSecret),
		tokenTTL:    defaultTokenTTL,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, credentials Credentials, jwtSecret string) {
	handler := NewAuthHandler(credentials, jwtSecret)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
}

// RequireAuth constructs auth middleware that rejects requests without a
// valid bearer token and attaches the token's username to the context.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return requireAuth([]byte(jwtSecret))
}

func requireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			username, err := parseTokenUsername(tokenString, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), username)))
		})
	}
}

// Register creates a new user account and returns a JWT.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	created, err := h.credentials.Register(r.Context(), req.Username, req.Password)
	if errors.Is(err, services.ErrInvalidPassword) {
		writeError(w, http.StatusBadRequest, "password must be at most 72 bytes")
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("username", req.Username).Msg("registration failed")
		writeError(w, http.StatusInternalServerError, "failed to process registration")
		return
	}
	if !created {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}

	token, err := issueToken(req.Username, h.secret, h.tokenTTL)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to sign token")
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		Username: req.Username,
		Token:    token,
		Message:  "Registration successful",
	})
}

// Login verifies credentials and returns a JWT.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	valid, err := h.credentials.Verify(r.Context(), req.Username, req.Password)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("username", req.Username).Msg("login failed")
		writeError(w, http.StatusInternalServerError, "failed to process login")
		return
	}
	if !valid {
		writeError(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}

	token, err := issueToken(req.Username, h.secret, h.tokenTTL)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to sign token")
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Username: req.Username,
		Token:    token,
		Message:  "Login successful",
	})
}

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Username string `json:"username"`
	Token    string `json:"token"`
	Message  string `json:"message"`
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (CredentialsRequest, bool) {
	var req CredentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return CredentialsRequest{}, false
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing username or password")
		return CredentialsRequest{}, false
	}
	return req, true
}

type tokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func issueToken(username string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseTokenUsername(tokenString string, secret []byte) (string, error) {
	claims := tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Username) == "" {
		return "", errors.New("missing username")
	}
	return claims.Username, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
