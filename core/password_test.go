package core_test

import (
	"testing"

	"authgate/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	hasher := core.NewPasswordHasher(4)

	digest, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, digest)
	assert.NotEqual(t, "correct horse battery staple", digest)

	assert.True(t, hasher.Verify("correct horse battery staple", digest))
	assert.False(t, hasher.Verify("wrong password", digest))
}

func TestPasswordHasher_DistinctSalts(t *testing.T) {
	hasher := core.NewPasswordHasher(4)

	first, err := hasher.Hash("password123")
	require.NoError(t, err)
	second, err := hasher.Hash("password123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Verify("password123", first))
	assert.True(t, hasher.Verify("password123", second))
}

func TestPasswordHasher_MalformedDigest(t *testing.T) {
	hasher := core.NewPasswordHasher(4)

	assert.False(t, hasher.Verify("anything", ""))
	assert.False(t, hasher.Verify("anything", "not-a-bcrypt-digest"))
}

func TestPasswordHasher_CostDefaults(t *testing.T) {
	hasher := core.NewPasswordHasher(0)

	digest, err := hasher.Hash("password123")
	require.NoError(t, err)
	assert.True(t, hasher.Verify("password123", digest))
}
