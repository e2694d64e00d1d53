package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/shortkit/shortkit/internal/models"
)

type contextKey string

const (
	accountKey contextKey = "account"
	tokenKey   contextKey = "token"
)

// CookieName carries the signed auth token between requests.
const CookieName = "auth_token"

// Authenticator validates a token and returns the live account behind it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Account, error)
}

type Auth struct {
	auth   Authenticator
	logger *zap.Logger
}

func NewAuthMiddleware(auth Authenticator, logger *zap.Logger) *Auth {
	return &Auth{auth: auth, logger: logger}
}

// Require rejects requests without a valid session and stashes the account
// in the request context for downstream handlers.
func (a *Auth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil {
			unauthorized(w, "Access denied. No token provided.")
			return
		}

		account, err := a.auth.Authenticate(r.Context(), cookie.Value)
		if err != nil {
			a.logger.Debug("Authentication failed", zap.Error(err))
			unauthorized(w, "Session expired. Please login again.")
			return
		}

		ctx := context.WithValue(r.Context(), accountKey, account)
		ctx = context.WithValue(ctx, tokenKey, cookie.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}

// AccountFromContext returns the authenticated account, if any.
func AccountFromContext(ctx context.Context) (*models.Account, bool) {
	account, ok := ctx.Value(accountKey).(*models.Account)
	return account, ok
}

// TokenFromContext returns the raw token the request authenticated with.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok
}
