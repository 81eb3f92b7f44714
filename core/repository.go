package core

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	ErrUsernameTaken       = errors.New("username already taken")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrMissingEmail        = errors.New("provider profile carries no email")
	ErrLastAuthMethod      = errors.New("cannot remove the only authentication method")
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// Repository is the credential store: identities, their linked OAuth
// accounts, the refresh-token ledger, and the department names the
// profile endpoint joins against. Uniqueness of usernames and of
// (provider, subject id) pairs is enforced by the store itself;
// application-level existence checks are only a fast path.
type Repository interface {
	// Identity operations

	FindIdentityByID(ctx context.Context, id uuid.UUID) (*Identity, error)

	FindIdentityByUsername(ctx context.Context, username string) (*Identity, error)

	// FindIdentityByEmail matches the email exactly (case-sensitive).
	FindIdentityByEmail(ctx context.Context, email string) (*Identity, error)

	CreateIdentity(ctx context.Context, identity *Identity) error

	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error

	UpdateAuthMode(ctx context.Context, id uuid.UUID, mode AuthMode) error

	// OAuthAccount operations

	FindOAuthAccount(ctx context.Context, provider Provider, subjectID string) (*OAuthAccount, error)

	// ListOAuthAccounts returns the accounts linked to an identity,
	// most recently linked first.
	ListOAuthAccounts(ctx context.Context, identityID uuid.UUID) ([]OAuthAccount, error)

	CreateOAuthAccount(ctx context.Context, account *OAuthAccount) error

	UpdateOAuthAccountTokens(ctx context.Context, accountID int64, accessToken, refreshToken string) error

	DeleteOAuthAccount(ctx context.Context, identityID uuid.UUID, provider Provider) error

	// Refresh-token ledger

	CreateRefreshToken(ctx context.Context, token *RefreshToken) error

	RefreshTokenExists(ctx context.Context, token string) (bool, error)

	// DeleteRefreshToken is idempotent: deleting an absent token is not an error.
	DeleteRefreshToken(ctx context.Context, token string) error

	DeleteAllRefreshTokens(ctx context.Context, identityID uuid.UUID) error

	// Department lookup (owned by the departments service, read here only)

	DepartmentName(ctx context.Context, id int64) (string, error)
}
