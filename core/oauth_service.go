package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OAuthService reconciles verified provider profiles with local
// identities and manages account linking. It holds no session state:
// the resolved identity is handed back to the caller, which mints the
// token pair.
type OAuthService struct {
	repo      Repository
	crypto    *CryptoService
	providers map[Provider]AuthProvider
}

func NewOAuthService(repo Repository, crypto *CryptoService, providers map[Provider]AuthProvider) *OAuthService {
	return &OAuthService{
		repo:      repo,
		crypto:    crypto,
		providers: providers,
	}
}

// ProviderFor returns the configured provider implementation, or
// ErrUnsupportedProvider for unknown or unconfigured names.
func (s *OAuthService) ProviderFor(name Provider) (AuthProvider, error) {
	provider, ok := s.providers[name]
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	return provider, nil
}

// Login runs the callback half of the OAuth handshake: it exchanges the
// authorization code, fetches the profile, and resolves it to a local
// identity.
func (s *OAuthService) Login(ctx context.Context, name Provider, code string) (*Identity, error) {
	provider, err := s.ProviderFor(name)
	if err != nil {
		return nil, err
	}

	tokens, err := provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	profile, err := provider.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	profile.Tokens = *tokens

	return s.Resolve(ctx, name, profile)
}

// Resolve maps a verified provider profile onto a local identity.
// The lookup order matters:
//
//  1. an OAuthAccount already exists for (provider, subject id): reuse
//     its owning identity and refresh the cached provider tokens;
//  2. an identity exists with the profile's email: link a new
//     OAuthAccount to it, moving a local identity to hybrid;
//  3. otherwise create a fresh OAuth-only identity.
//
// Email is the only cross-identity correlation key, so a profile
// without one fails with ErrMissingEmail before anything is touched.
func (s *OAuthService) Resolve(ctx context.Context, name Provider, profile *Profile) (*Identity, error) {
	if profile.Email == "" {
		return nil, ErrMissingEmail
	}

	encAccess, encRefresh, err := s.encryptTokens(profile.Tokens)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.FindOAuthAccount(ctx, name, profile.SubjectID)
	if err == nil {
		if err := s.repo.UpdateOAuthAccountTokens(ctx, account.ID, encAccess, encRefresh); err != nil {
			return nil, fmt.Errorf("failed to update provider tokens: %w", err)
		}
		return s.repo.FindIdentityByID(ctx, account.IdentityID)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to look up oauth account: %w", err)
	}

	identity, err := s.repo.FindIdentityByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if identity.AuthMode == AuthModeLocal {
			if err := s.repo.UpdateAuthMode(ctx, identity.ID, AuthModeHybrid); err != nil {
				return nil, fmt.Errorf("failed to update auth mode: %w", err)
			}
			identity.AuthMode = AuthModeHybrid
		}

	case errors.Is(err, ErrNotFound):
		email := profile.Email
		identity = &Identity{
			ID:        uuid.New(),
			Username:  usernameFromEmail(email),
			Email:     &email,
			Role:      RoleUsuario,
			AuthMode:  AuthModeOAuth,
			CreatedAt: time.Now(),
		}
		if err := s.repo.CreateIdentity(ctx, identity); err != nil {
			return nil, fmt.Errorf("failed to create identity: %w", err)
		}

	default:
		return nil, fmt.Errorf("failed to look up identity by email: %w", err)
	}

	newAccount := &OAuthAccount{
		IdentityID:   identity.ID,
		Provider:     name,
		SubjectID:    profile.SubjectID,
		Email:        profile.Email,
		DisplayName:  profile.DisplayName,
		ProfilePhoto: profile.Photo,
		AccessToken:  encAccess,
		RefreshToken: encRefresh,
		CreatedAt:    time.Now(),
	}
	if err := s.repo.CreateOAuthAccount(ctx, newAccount); err != nil {
		return nil, fmt.Errorf("failed to create oauth account: %w", err)
	}

	return identity, nil
}

// LinkedAccounts lists the provider accounts linked to the identity,
// most recently linked first.
func (s *OAuthService) LinkedAccounts(ctx context.Context, identityID uuid.UUID) ([]OAuthAccount, error) {
	return s.repo.ListOAuthAccounts(ctx, identityID)
}

// Unlink removes one provider account. It refuses with
// ErrLastAuthMethod when that account is the identity's only remaining
// authentication path, and moves a hybrid identity back to local when
// its last OAuth account goes away.
func (s *OAuthService) Unlink(ctx context.Context, identityID uuid.UUID, name Provider) error {
	identity, err := s.repo.FindIdentityByID(ctx, identityID)
	if err != nil {
		return err
	}

	accounts, err := s.repo.ListOAuthAccounts(ctx, identityID)
	if err != nil {
		return fmt.Errorf("failed to list oauth accounts: %w", err)
	}

	if len(accounts) == 1 && !identity.HasPassword() {
		return ErrLastAuthMethod
	}

	if err := s.repo.DeleteOAuthAccount(ctx, identityID, name); err != nil {
		return err
	}

	if len(accounts) == 1 && identity.HasPassword() {
		if err := s.repo.UpdateAuthMode(ctx, identityID, AuthModeLocal); err != nil {
			return fmt.Errorf("failed to update auth mode: %w", err)
		}
	}

	return nil
}

func (s *OAuthService) encryptTokens(tokens ProviderTokens) (access, refresh string, err error) {
	if tokens.AccessToken != "" {
		access, err = s.crypto.Encrypt(tokens.AccessToken)
		if err != nil {
			return "", "", fmt.Errorf("failed to encrypt access token: %w", err)
		}
	}
	if tokens.RefreshToken != "" {
		refresh, err = s.crypto.Encrypt(tokens.RefreshToken)
		if err != nil {
			return "", "", fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
	}
	return access, refresh, nil
}

func usernameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
