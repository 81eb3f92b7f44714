package core

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the decoded payload of a signed token. Role is only set on
// access tokens; refresh tokens carry id and username alone so that the
// role is re-read from the store at refresh time.
type Claims struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Role     Role      `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies signed, time-boxed tokens. The secret
// and TTLs are fixed at construction so tests can run isolated issuers
// with distinct secrets.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenIssuer(config *Config) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(config.JWTSecret),
		accessTTL:  time.Duration(config.AccessTokenDuration) * time.Second,
		refreshTTL: time.Duration(config.RefreshTokenDuration) * time.Second,
	}
}

// IssueAccessToken signs a short-lived token carrying id, username and role.
func (t *TokenIssuer) IssueAccessToken(identity *Identity) (string, error) {
	return t.sign(&Claims{
		UserID:   identity.ID,
		Username: identity.Username,
		Role:     identity.Role,
	}, t.accessTTL)
}

// IssueRefreshToken signs a long-lived token carrying id and username only.
func (t *TokenIssuer) IssueRefreshToken(identity *Identity) (string, error) {
	return t.sign(&Claims{
		UserID:   identity.ID,
		Username: identity.Username,
	}, t.refreshTTL)
}

func (t *TokenIssuer) sign(claims *Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify checks signature and expiry. It returns ErrExpiredToken when
// the embedded expiry has passed and ErrInvalidToken for anything
// malformed or forged.
func (t *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
