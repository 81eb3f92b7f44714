package core_test

import (
	"testing"

	"authgate/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEncryptionKey = "12345678901234567890123456789012"

func TestCryptoService_RoundTrip(t *testing.T) {
	crypto, err := core.NewCryptoService(testEncryptionKey)
	require.NoError(t, err)

	ciphertext, err := crypto.Encrypt("provider_access_token")
	require.NoError(t, err)
	assert.NotEqual(t, "provider_access_token", ciphertext)

	plaintext, err := crypto.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "provider_access_token", plaintext)
}

func TestCryptoService_KeyLength(t *testing.T) {
	_, err := core.NewCryptoService("too-short")
	assert.ErrorIs(t, err, core.ErrInvalidEncryptionKey)
}

func TestCryptoService_DistinctNonces(t *testing.T) {
	crypto, err := core.NewCryptoService(testEncryptionKey)
	require.NoError(t, err)

	first, err := crypto.Encrypt("same plaintext")
	require.NoError(t, err)
	second, err := crypto.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCryptoService_DecryptGarbage(t *testing.T) {
	crypto, err := core.NewCryptoService(testEncryptionKey)
	require.NoError(t, err)

	_, err = crypto.Decrypt("not base64 !!!")
	assert.Error(t, err)

	_, err = crypto.Decrypt("c2hvcnQ=")
	assert.ErrorIs(t, err, core.ErrInvalidCiphertext)

	wrongKey, err := core.NewCryptoService("abcdefghijklmnopqrstuvwxyz012345")
	require.NoError(t, err)
	ciphertext, err := crypto.Encrypt("secret")
	require.NoError(t, err)
	_, err = wrongKey.Decrypt(ciphertext)
	assert.Error(t, err)
}
