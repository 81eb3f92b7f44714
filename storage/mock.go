package storage

import (
	"context"
	"sync"

	"authgate/core"

	"github.com/google/uuid"
)

// MockRepository is an in-memory Repository used by tests and by the
// standalone binary when no database is configured. Methods are safe
// for concurrent use.
type MockRepository struct {
	mu sync.Mutex

	identities    map[uuid.UUID]*core.Identity
	oauthAccounts []*core.OAuthAccount
	nextAccountID int64
	refreshTokens map[string]*core.RefreshToken
	departments   map[int64]string

	// Track method calls for verification
	CreateIdentityCalls     int
	FindByUsernameCalls     int
	FindByEmailCalls        int
	CreateOAuthAccountCalls int
	CreateRefreshTokenCalls int
	DeleteRefreshTokenCalls int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		identities:    make(map[uuid.UUID]*core.Identity),
		oauthAccounts: []*core.OAuthAccount{},
		nextAccountID: 1,
		refreshTokens: make(map[string]*core.RefreshToken),
		departments:   make(map[int64]string),
	}
}

// AddDepartment seeds a department for profile lookups.
func (m *MockRepository) AddDepartment(id int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.departments[id] = name
}

// SetRole changes a stored identity's role, the way an admin service
// sharing the database would.
func (m *MockRepository) SetRole(id uuid.UUID, role core.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if identity, ok := m.identities[id]; ok {
		identity.Role = role
	}
}

func copyIdentity(identity *core.Identity) *core.Identity {
	clone := *identity
	if identity.Email != nil {
		email := *identity.Email
		clone.Email = &email
	}
	if identity.PasswordHash != nil {
		hash := *identity.PasswordHash
		clone.PasswordHash = &hash
	}
	if identity.DepartmentID != nil {
		dept := *identity.DepartmentID
		clone.DepartmentID = &dept
	}
	return &clone
}

func (m *MockRepository) FindIdentityByID(ctx context.Context, id uuid.UUID) (*core.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	identity, ok := m.identities[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return copyIdentity(identity), nil
}

func (m *MockRepository) FindIdentityByUsername(ctx context.Context, username string) (*core.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindByUsernameCalls++

	for _, identity := range m.identities {
		if identity.Username == username {
			return copyIdentity(identity), nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *MockRepository) FindIdentityByEmail(ctx context.Context, email string) (*core.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindByEmailCalls++

	for _, identity := range m.identities {
		if identity.Email != nil && *identity.Email == email {
			return copyIdentity(identity), nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *MockRepository) CreateIdentity(ctx context.Context, identity *core.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateIdentityCalls++

	if _, ok := m.identities[identity.ID]; ok {
		return core.ErrAlreadyExists
	}
	for _, existing := range m.identities {
		if existing.Username == identity.Username {
			return core.ErrAlreadyExists
		}
		if existing.Email != nil && identity.Email != nil && *existing.Email == *identity.Email {
			return core.ErrAlreadyExists
		}
	}

	m.identities[identity.ID] = copyIdentity(identity)
	return nil
}

func (m *MockRepository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	identity, ok := m.identities[id]
	if !ok {
		return core.ErrNotFound
	}
	identity.PasswordHash = &hash
	return nil
}

func (m *MockRepository) UpdateAuthMode(ctx context.Context, id uuid.UUID, mode core.AuthMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	identity, ok := m.identities[id]
	if !ok {
		return core.ErrNotFound
	}
	identity.AuthMode = mode
	return nil
}

func copyOAuthAccount(account *core.OAuthAccount) *core.OAuthAccount {
	clone := *account
	return &clone
}

func (m *MockRepository) FindOAuthAccount(ctx context.Context, provider core.Provider, subjectID string) (*core.OAuthAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, account := range m.oauthAccounts {
		if account.Provider == provider && account.SubjectID == subjectID {
			return copyOAuthAccount(account), nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *MockRepository) ListOAuthAccounts(ctx context.Context, identityID uuid.UUID) ([]core.OAuthAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := []core.OAuthAccount{}
	for i := len(m.oauthAccounts) - 1; i >= 0; i-- {
		if m.oauthAccounts[i].IdentityID == identityID {
			accounts = append(accounts, *m.oauthAccounts[i])
		}
	}
	return accounts, nil
}

func (m *MockRepository) CreateOAuthAccount(ctx context.Context, account *core.OAuthAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateOAuthAccountCalls++

	for _, existing := range m.oauthAccounts {
		if existing.Provider == account.Provider && existing.SubjectID == account.SubjectID {
			return core.ErrAlreadyExists
		}
	}

	account.ID = m.nextAccountID
	m.nextAccountID++
	m.oauthAccounts = append(m.oauthAccounts, copyOAuthAccount(account))
	return nil
}

func (m *MockRepository) UpdateOAuthAccountTokens(ctx context.Context, accountID int64, accessToken, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, account := range m.oauthAccounts {
		if account.ID == accountID {
			account.AccessToken = accessToken
			account.RefreshToken = refreshToken
			return nil
		}
	}
	return core.ErrNotFound
}

func (m *MockRepository) DeleteOAuthAccount(ctx context.Context, identityID uuid.UUID, provider core.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, account := range m.oauthAccounts {
		if account.IdentityID == identityID && account.Provider == provider {
			m.oauthAccounts = append(m.oauthAccounts[:i], m.oauthAccounts[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (m *MockRepository) CreateRefreshToken(ctx context.Context, token *core.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateRefreshTokenCalls++

	if _, ok := m.refreshTokens[token.Token]; ok {
		return core.ErrAlreadyExists
	}

	clone := *token
	m.refreshTokens[token.Token] = &clone
	return nil
}

func (m *MockRepository) RefreshTokenExists(ctx context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.refreshTokens[token]
	return ok, nil
}

func (m *MockRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteRefreshTokenCalls++

	delete(m.refreshTokens, token)
	return nil
}

func (m *MockRepository) DeleteAllRefreshTokens(ctx context.Context, identityID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, token := range m.refreshTokens {
		if token.IdentityID == identityID {
			delete(m.refreshTokens, key)
		}
	}
	return nil
}

func (m *MockRepository) DepartmentName(ctx context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name, ok := m.departments[id]
	if !ok {
		return "", core.ErrNotFound
	}
	return name, nil
}

// RefreshTokenCount reports the number of tokens held for an identity.
func (m *MockRepository) RefreshTokenCount(identityID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, token := range m.refreshTokens {
		if token.IdentityID == identityID {
			count++
		}
	}
	return count
}

var _ core.Repository = (*MockRepository)(nil)
