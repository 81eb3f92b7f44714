package core_test

import (
	"testing"

	"authgate/core"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity() *core.Identity {
	return &core.Identity{
		ID:       uuid.New(),
		Username: "alice",
		Role:     core.RoleUsuario,
		AuthMode: core.AuthModeLocal,
	}
}

func TestTokenIssuer_AccessTokenRoundTrip(t *testing.T) {
	issuer := core.NewTokenIssuer(&core.Config{
		JWTSecret:            "test-secret",
		AccessTokenDuration:  1800,
		RefreshTokenDuration: 2592000,
	})
	identity := testIdentity()

	token, err := issuer.IssueAccessToken(identity)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, core.RoleUsuario, claims.Role)
}

func TestTokenIssuer_RefreshTokenHasNoRole(t *testing.T) {
	issuer := core.NewTokenIssuer(&core.Config{
		JWTSecret:            "test-secret",
		AccessTokenDuration:  1800,
		RefreshTokenDuration: 2592000,
	})
	identity := testIdentity()

	token, err := issuer.IssueRefreshToken(identity)
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Empty(t, claims.Role)
}

func TestTokenIssuer_Expired(t *testing.T) {
	issuer := core.NewTokenIssuer(&core.Config{
		JWTSecret:           "test-secret",
		AccessTokenDuration: -60,
	})

	token, err := issuer.IssueAccessToken(testIdentity())
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, core.ErrExpiredToken)
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	issuer := core.NewTokenIssuer(&core.Config{
		JWTSecret:           "secret-one",
		AccessTokenDuration: 1800,
	})
	other := core.NewTokenIssuer(&core.Config{
		JWTSecret:           "secret-two",
		AccessTokenDuration: 1800,
	})

	token, err := issuer.IssueAccessToken(testIdentity())
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestTokenIssuer_Malformed(t *testing.T) {
	issuer := core.NewTokenIssuer(&core.Config{
		JWTSecret:           "test-secret",
		AccessTokenDuration: 1800,
	})

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := issuer.Verify(token)
		assert.ErrorIs(t, err, core.ErrInvalidToken)
	}
}
