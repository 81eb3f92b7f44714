package core_test

import (
	"context"
	"testing"

	"authgate/core"
	"authgate/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *core.Config {
	return &core.Config{
		JWTSecret:            "test-secret-key-for-testing-purposes-only",
		AccessTokenDuration:  1800,
		RefreshTokenDuration: 2592000,
		BcryptCost:           4,
		EncryptionKey:        testEncryptionKey,
		FrontendURL:          "http://localhost:3000",
	}
}

func setupAuthService() (*core.AuthService, *storage.MockRepository, *core.TokenIssuer) {
	config := testConfig()
	repo := storage.NewMockRepository()
	hasher := core.NewPasswordHasher(config.BcryptCost)
	issuer := core.NewTokenIssuer(config)
	return core.NewAuthService(repo, hasher, issuer), repo, issuer
}

func TestRegister_Success(t *testing.T) {
	service, repo, issuer := setupAuthService()
	ctx := context.Background()

	identity, pair, err := service.Register(ctx, "alice", "password123", core.RoleUsuario, nil)
	require.NoError(t, err)

	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, core.RoleUsuario, identity.Role)
	assert.Equal(t, core.AuthModeLocal, identity.AuthMode)
	assert.True(t, identity.HasPassword())
	assert.Nil(t, identity.Email)

	require.NotNil(t, pair)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	claims, err := issuer.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, claims.UserID)
	assert.Equal(t, core.RoleUsuario, claims.Role)

	exists, err := repo.RefreshTokenExists(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRegister_UsernameTaken(t *testing.T) {
	service, _, _ := setupAuthService()
	ctx := context.Background()

	_, _, err := service.Register(ctx, "alice", "password123", core.RoleUsuario, nil)
	require.NoError(t, err)

	_, _, err = service.Register(ctx, "alice", "different456", core.RoleAdmin, nil)
	assert.ErrorIs(t, err, core.ErrUsernameTaken)
}

func TestRegister_WithDepartment(t *testing.T) {
	service, repo, _ := setupAuthService()
	ctx := context.Background()
	repo.AddDepartment(7, "Engineering")

	deptID := int64(7)
	identity, _, err := service.Register(ctx, "bob", "password123", core.RoleSupervisor, &deptID)
	require.NoError(t, err)
	require.NotNil(t, identity.DepartmentID)
	assert.Equal(t, int64(7), *identity.DepartmentID)

	profile, err := service.Profile(ctx, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, "Engineering", profile.DepartmentName)
	assert.Equal(t, core.RoleSupervisor, profile.Role)
}

func TestLogin_Success(t *testing.T) {
	service, _, _ := setupAuthService()
	ctx := context.Background()

	registered, _, err := service.Register(ctx, "alice", "password123", core.RoleUsuario, nil)
	require.NoError(t, err)

	identity, pair, err := service.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, identity.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
}

func TestLogin_WrongPassword(t *testing.T) {
	service, _, _ := setupAuthService()
	ctx := context.Background()

	_, _, err := service.Register(ctx, "alice", "password123", core.RoleUsuario, nil)
	require.NoError(t, err)

	_, _, err = service.Login(ctx, "alice", "wrongpassword")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
}

func TestLogin_UnknownUser(t *testing.T) {
	service, _, _ := setupAuthService()

	_, _, err := service.Login(context.Background(), "nobody", "password123")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
}

func TestLogin_OAuthOnlyIdentity(t *testing.T) {
	service, repo, _ := setupAuthService()
	ctx := context.Background()

	email := "carol@example.com"
	identity := &core.Identity{
		ID:       uuid.New(),
		Username: "carol",
		Email:    &email,
		Role:     core.RoleUsuario,
		AuthMode: core.AuthModeOAuth,
	}
	require.NoError(t, repo.CreateIdentity(ctx, identity))

	_, _, err := service.Login(ctx, "carol", "anything")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
}

func TestRefresh_Success(t *testing.T) {
	service, _, issuer := setupAuthService()
	ctx := context.Background()

	identity, pair, err := service.Register(ctx, "alice", "password123", core.RoleAdmin, nil)
	require.NoError(t, err)

	accessToken, err := service.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	claims, err := issuer.Verify(accessToken)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, claims.UserID)
	assert.Equal(t, core.RoleAdmin, claims.Role)

	// The refresh token is not rotated and stays usable.
	_, err = service.Refresh(ctx, pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_ReflectsCurrentRole(t *testing.T) {
	service, repo, issuer := setupAuthService()
	ctx := context.Background()

	identity, pair, err := service.Register(ctx, "alice", "password123", core.RoleUsuario, nil)
	require.NoError(t, err)

	// Role changed in the store after the pair was issued.
	repo.SetRole(identity.ID, core.RoleAdmin)

	accessToken, err := service.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	claims, err := issuer.Verify(accessToken)
	require.NoError(t, err)
	assert.Equal(t, core.RoleAdmin, claims.Role)
}

func TestRefresh_UnknownToken(t *testing.T) {
	service, _, issuer := setupAuthService()
	ctx := context.Background()

	identity, _, err := service.Register(ctx, "alice", "password123", core.RoleUsuario, nil)
	require.NoError(t, err)

	// Validly signed but never recorded in the ledger.
	unledgered, err := issuer.IssueRefreshToken(identity)
	require.NoError(t, err)

	_, err = service.Refresh(ctx, unledgered)
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
}

func TestRefresh_ExpiredTokenIsPurged(t *testing.T) {
	config := testConfig()
	config.RefreshTokenDuration = -60
	repo := storage.NewMockRepository()
	service := core.NewAuthService(repo, core.NewPasswordHasher(4), core.NewTokenIssuer(config))
	ctx := context.Background()

	_, pair, err := service.Register(ctx, "alice", "password123", core.RoleUsuario, nil)
	require.NoError(t, err)

	_, err = service.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, core.ErrExpiredToken)

	exists, err := repo.RefreshTokenExists(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.False(t, exists, "expired token should be removed from the ledger")
}

func TestLogout_RevokesToken(t *testing.T) {
	service, repo, _ := setupAuthService()
	ctx := context.Background()

	_, pair, err := service.Register(ctx, "alice", "password123", core.RoleUsuario, nil)
	require.NoError(t, err)

	require.NoError(t, service.Logout(ctx, pair.RefreshToken))

	exists, err := repo.RefreshTokenExists(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = service.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
}

func TestLogout_Idempotent(t *testing.T) {
	service, _, _ := setupAuthService()
	ctx := context.Background()

	assert.NoError(t, service.Logout(ctx, ""))
	assert.NoError(t, service.Logout(ctx, "never-seen-token"))
}

func TestChangePassword_Success(t *testing.T) {
	service, repo, _ := setupAuthService()
	ctx := context.Background()

	identity, _, err := service.Register(ctx, "alice", "oldpassword", core.RoleUsuario, nil)
	require.NoError(t, err)

	// A second session to confirm every token gets revoked.
	_, _, err = service.Login(ctx, "alice", "oldpassword")
	require.NoError(t, err)

	require.NoError(t, service.ChangePassword(ctx, identity.ID, "oldpassword", "newpassword"))

	assert.Equal(t, 0, repo.RefreshTokenCount(identity.ID))

	_, _, err = service.Login(ctx, "alice", "oldpassword")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)

	_, _, err = service.Login(ctx, "alice", "newpassword")
	assert.NoError(t, err)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	service, _, _ := setupAuthService()
	ctx := context.Background()

	identity, _, err := service.Register(ctx, "alice", "password123", core.RoleUsuario, nil)
	require.NoError(t, err)

	err = service.ChangePassword(ctx, identity.ID, "wrongpassword", "newpassword")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)

	_, _, err = service.Login(ctx, "alice", "password123")
	assert.NoError(t, err)
}

func TestProfile_UnknownIdentity(t *testing.T) {
	service, _, _ := setupAuthService()

	_, err := service.Profile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, core.ErrNotFound)
}
