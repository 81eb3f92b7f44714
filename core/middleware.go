package core

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

var ErrMissingToken = errors.New("missing bearer token")

type contextKey int

const claimsKey contextKey = 0

// AuthGate verifies bearer tokens on protected requests and attaches
// the decoded claims to the request context.
type AuthGate struct {
	issuer *TokenIssuer
}

func NewAuthGate(issuer *TokenIssuer) *AuthGate {
	return &AuthGate{issuer: issuer}
}

// Authenticate rejects requests without a valid access token. On
// success the claims are available downstream via ClaimsFromContext.
func (g *AuthGate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "missing_token", "No token provided")
			return
		}

		claims, err := g.issuer.Verify(token)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				respondError(w, http.StatusUnauthorized, "token_expired", "Token expired")
				return
			}
			respondError(w, http.StatusUnauthorized, "invalid_token", "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// RequireRole allows only requests whose claims carry exactly the given role.
func RequireRole(role Role) func(http.Handler) http.Handler {
	return RequireAnyRole(role)
}

// RequireAnyRole allows requests whose claims carry any of the given roles.
func RequireAnyRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || !HasAnyRole(claims, roles...) {
				respondError(w, http.StatusForbidden, "forbidden", "Insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HasAnyRole reports whether the claims carry one of the given roles.
func HasAnyRole(claims *Claims, roles ...Role) bool {
	for _, role := range roles {
		if claims.Role == role {
			return true
		}
	}
	return false
}

// IsOwnerOrRole reports whether the claims identify the owner of a
// resource or carry the given role. Handlers use it for "your own
// record, or an admin" checks.
func IsOwnerOrRole(claims *Claims, ownerID uuid.UUID, role Role) bool {
	return claims.UserID == ownerID || claims.Role == role
}

// ContextWithClaims attaches decoded claims to ctx.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext retrieves the claims Authenticate attached.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", ErrMissingToken
	}

	return parts[1], nil
}
