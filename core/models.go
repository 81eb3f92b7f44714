package core

import (
	"time"

	"github.com/google/uuid"
)

// Provider represents an external OAuth identity source
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
	// Future providers can be added here
)

// Role is the authorization role embedded in access-token claims
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleUsuario    Role = "usuario"
	RoleSupervisor Role = "supervisor"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleUsuario, RoleSupervisor:
		return true
	}
	return false
}

// AuthMode describes which authentication paths an identity currently has.
type AuthMode string

const (
	AuthModeLocal  AuthMode = "local"  // password only
	AuthModeOAuth  AuthMode = "oauth"  // linked provider accounts only
	AuthModeHybrid AuthMode = "hybrid" // password plus linked provider accounts
)

// Identity is a user account, the root entity for authentication.
// An identity always keeps at least one usable authentication path:
// a password hash, a linked OAuth account, or both.
type Identity struct {
	ID           uuid.UUID
	Username     string
	Email        *string // set by the OAuth path, absent for password registrations
	PasswordHash *string // nil for OAuth-only identities
	Role         Role
	DepartmentID *int64
	AuthMode     AuthMode
	CreatedAt    time.Time
}

// HasPassword reports whether the identity can authenticate with a password.
func (i *Identity) HasPassword() bool {
	return i.PasswordHash != nil && *i.PasswordHash != ""
}

// OAuthAccount links an Identity to one external provider account.
// (provider, subject id) is unique across all identities. The cached
// provider tokens are encrypted at rest.
type OAuthAccount struct {
	ID           int64
	IdentityID   uuid.UUID
	Provider     Provider
	SubjectID    string
	Email        string
	DisplayName  string
	ProfilePhoto string
	AccessToken  string
	RefreshToken string
	CreatedAt    time.Time
}

// RefreshToken is a ledger entry authorizing token renewal. The token
// string itself is a signed JWT; the row only records that it has not
// been revoked yet.
type RefreshToken struct {
	IdentityID uuid.UUID
	Token      string
	CreatedAt  time.Time
}
