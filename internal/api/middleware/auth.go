package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rifthq/smartstats/internal/api/response"
	"github.com/rifthq/smartstats/internal/domain"
	"github.com/rifthq/smartstats/internal/security"
)

type contextKey string

const (
	UserIDKey      contextKey = "userID"
	UserEmailKey   contextKey = "userEmail"
	AccessTokenKey contextKey = "accessToken"
)

// AnonHeader carries a client-chosen anonymous identity.
const AnonHeader = "X-Anon-Id"

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	jwtManager *security.JWTManager
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *security.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

// Authenticate validates the JWT token
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			response.Unauthorized(w, "missing authorization header")
			return
		}

		claims, err := m.jwtManager.ValidateAccessToken(token)
		if err != nil {
			response.Unauthorized(w, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), claims.UserID, claims.Email, token)))
	})
}

// AuthenticateOptional resolves a real user when a valid token is
// present, and otherwise assigns an anonymous principal. Clients may
// pin their anonymous identity across requests with X-Anon-Id; a
// malformed or absent header gets a fresh identity per request.
func (m *AuthMiddleware) AuthenticateOptional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token != "" {
			claims, err := m.jwtManager.ValidateAccessToken(token)
			if err != nil {
				response.Unauthorized(w, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), claims.UserID, claims.Email, token)))
			return
		}

		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), anonymousID(r), "", "")))
	})
}

func withPrincipal(ctx context.Context, userID, email, token string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UserEmailKey, email)
	ctx = context.WithValue(ctx, AccessTokenKey, token)
	return ctx
}

func anonymousID(r *http.Request) string {
	anon := strings.TrimSpace(r.Header.Get(AnonHeader))
	if anon == "" || len(anon) > 64 {
		anon = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return domain.AnonymousPrefix + anon
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// GetUserID gets the user ID from context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

// GetUserEmail gets the user email from context
func GetUserEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(UserEmailKey).(string)
	return email, ok
}

// GetAccessToken gets the raw bearer token from context. Empty for
// anonymous principals.
func GetAccessToken(ctx context.Context) string {
	token, _ := ctx.Value(AccessTokenKey).(string)
	return token
}
