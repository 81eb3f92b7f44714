package core

import (
	"context"
	"errors"
)

var (
	ErrProviderTokenExchange = errors.New("provider token exchange failed")
	ErrProviderProfile       = errors.New("provider profile request failed")
)

// ProviderTokens represents the tokens returned by an OAuth provider
type ProviderTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// Profile is the verified profile a provider reports after a completed
// code exchange, together with the provider tokens obtained for it.
type Profile struct {
	SubjectID   string
	Email       string
	DisplayName string
	Photo       string
	Tokens      ProviderTokens
}

type AuthProvider interface {
	// AuthURL returns the consent-screen URL the browser is sent to.
	AuthURL(state string) string

	ExchangeCode(ctx context.Context, code string) (*ProviderTokens, error)

	// FetchProfile retrieves the profile behind a provider access token.
	// The returned profile does not carry tokens; the caller attaches them.
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)

	Provider() Provider
}
