package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor("a-long-enough-test-secret")
	require.NoError(t, err)

	ciphertext, err := enc.EncryptIfEnabled("5511999998888")
	require.NoError(t, err)
	assert.NotEqual(t, "5511999998888", ciphertext)

	plaintext, err := enc.DecryptIfEnabled(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "5511999998888", plaintext)
}

func TestEncryptor_NonDeterministic(t *testing.T) {
	enc, err := NewEncryptor("a-long-enough-test-secret")
	require.NoError(t, err)

	first, err := enc.EncryptIfEnabled("5511999998888")
	require.NoError(t, err)
	second, err := enc.EncryptIfEnabled("5511999998888")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestEncryptor_DisabledPassThrough(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	ciphertext, err := enc.EncryptIfEnabled("5511999998888")
	require.NoError(t, err)
	assert.Equal(t, "5511999998888", ciphertext)

	plaintext, err := enc.DecryptIfEnabled("5511999998888")
	require.NoError(t, err)
	assert.Equal(t, "5511999998888", plaintext)
}

func TestEncryptor_SecretTooShort(t *testing.T) {
	_, err := NewEncryptor("short")
	assert.Error(t, err)
}

func TestEncryptor_EmptyValue(t *testing.T) {
	enc, err := NewEncryptor("a-long-enough-test-secret")
	require.NoError(t, err)

	ciphertext, err := enc.EncryptIfEnabled("")
	require.NoError(t, err)
	assert.Equal(t, "", ciphertext)
}

func TestEncryptor_DecryptMalformed(t *testing.T) {
	enc, err := NewEncryptor("a-long-enough-test-secret")
	require.NoError(t, err)

	_, err = enc.DecryptIfEnabled("not base64 at all!!!")
	assert.Error(t, err)

	_, err = enc.DecryptIfEnabled("c2hvcnQ=")
	assert.Error(t, err)
}

func TestEncryptor_WrongSecret(t *testing.T) {
	enc, err := NewEncryptor("a-long-enough-test-secret")
	require.NoError(t, err)

	ciphertext, err := enc.EncryptIfEnabled("5511999998888")
	require.NoError(t, err)

	other, err := NewEncryptor("a-different-long-secret!")
	require.NoError(t, err)

	_, err = other.DecryptIfEnabled(ciphertext)
	assert.Error(t, err)
}
