package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TokenPair is the access/refresh token pair minted at login time.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ProfileData is the identity view returned by /profile, with the
// department name joined in.
type ProfileData struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	Email          *string   `json:"email,omitempty"`
	Role           Role      `json:"role"`
	DepartmentID   *int64    `json:"department_id,omitempty"`
	DepartmentName string    `json:"department_name,omitempty"`
	AuthMode       AuthMode  `json:"auth_mode"`
	CreatedAt      time.Time `json:"created_at"`
}

// AuthService orchestrates credential verification and the token
// lifecycle over the credential store.
type AuthService struct {
	repo   Repository
	hasher *PasswordHasher
	issuer *TokenIssuer
}

func NewAuthService(repo Repository, hasher *PasswordHasher, issuer *TokenIssuer) *AuthService {
	return &AuthService{
		repo:   repo,
		hasher: hasher,
		issuer: issuer,
	}
}

// Register creates a password identity and logs it in.
func (s *AuthService) Register(ctx context.Context, username, password string, role Role, departmentID *int64) (*Identity, *TokenPair, error) {
	// Fast-path existence check; the store's unique constraint on
	// username is the ultimate arbiter under concurrent registration.
	_, err := s.repo.FindIdentityByUsername(ctx, username)
	if err == nil {
		return nil, nil, ErrUsernameTaken
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	identity := &Identity{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: &hash,
		Role:         role,
		DepartmentID: departmentID,
		AuthMode:     AuthModeLocal,
		CreatedAt:    time.Now(),
	}

	if err := s.repo.CreateIdentity(ctx, identity); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, nil, ErrUsernameTaken
		}
		return nil, nil, fmt.Errorf("failed to create identity: %w", err)
	}

	pair, err := s.IssueTokenPair(ctx, identity)
	if err != nil {
		return nil, nil, err
	}

	return identity, pair, nil
}

// Login verifies username and password. A missing user and a wrong
// password produce the same ErrInvalidCredentials so callers cannot
// enumerate usernames.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Identity, *TokenPair, error) {
	identity, err := s.repo.FindIdentityByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to find identity: %w", err)
	}

	if !identity.HasPassword() || !s.hasher.Verify(password, *identity.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.IssueTokenPair(ctx, identity)
	if err != nil {
		return nil, nil, err
	}

	return identity, pair, nil
}

// IssueTokenPair mints an access/refresh pair for the identity and
// records the refresh token in the ledger. It is shared by the
// password flows and the OAuth callback.
func (s *AuthService) IssueTokenPair(ctx context.Context, identity *Identity) (*TokenPair, error) {
	accessToken, err := s.issuer.IssueAccessToken(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.issuer.IssueRefreshToken(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	entry := &RefreshToken{
		IdentityID: identity.ID,
		Token:      refreshToken,
		CreatedAt:  time.Now(),
	}
	if err := s.repo.CreateRefreshToken(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Refresh exchanges a ledgered refresh token for a fresh access token.
// The refresh token itself is not rotated; it stays valid until logout,
// password change, or expiry. The new access token reflects the
// identity's current stored role, not the role at issuance time.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	exists, err := s.repo.RefreshTokenExists(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if !exists {
		return "", ErrInvalidCredentials
	}

	claims, err := s.issuer.Verify(refreshToken)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			// Lazy cleanup: purge the ledger row as a side effect
			// of the error path, best effort.
			_ = s.repo.DeleteRefreshToken(ctx, refreshToken)
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	identity, err := s.repo.FindIdentityByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to find identity: %w", err)
	}

	accessToken, err := s.issuer.IssueAccessToken(identity)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return accessToken, nil
}

// Logout revokes the refresh token. It always succeeds, even when the
// token was absent or already expired.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.repo.DeleteRefreshToken(ctx, refreshToken); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}

// ChangePassword verifies the current password, stores the new hash and
// revokes every outstanding refresh token for the identity, forcing a
// re-login everywhere.
func (s *AuthService) ChangePassword(ctx context.Context, identityID uuid.UUID, currentPassword, newPassword string) error {
	identity, err := s.repo.FindIdentityByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to find identity: %w", err)
	}

	if !identity.HasPassword() || !s.hasher.Verify(currentPassword, *identity.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.UpdatePasswordHash(ctx, identityID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.repo.DeleteAllRefreshTokens(ctx, identityID); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}

	return nil
}

// Profile returns the identity with its department name resolved.
func (s *AuthService) Profile(ctx context.Context, identityID uuid.UUID) (*ProfileData, error) {
	identity, err := s.repo.FindIdentityByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	profile := &ProfileData{
		ID:           identity.ID,
		Username:     identity.Username,
		Email:        identity.Email,
		Role:         identity.Role,
		DepartmentID: identity.DepartmentID,
		AuthMode:     identity.AuthMode,
		CreatedAt:    identity.CreatedAt,
	}

	if identity.DepartmentID != nil {
		name, err := s.repo.DepartmentName(ctx, *identity.DepartmentID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("failed to resolve department: %w", err)
		}
		profile.DepartmentName = name
	}

	return profile, nil
}
