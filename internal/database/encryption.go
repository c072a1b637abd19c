package database

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	nonceSize     = 12
	kdfIterations = 100000
	keyLength     = 32
	kdfSalt       = "zapdispatch-store-v1"
)

// encryptor provides optional at-rest encryption for recipient numbers.
// Encryption is non-deterministic; nothing in the store queries by recipient,
// so no lookup-stable variant is needed.
type encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor builds an encryptor from the configured secret. An empty
// secret disables encryption and every operation becomes a pass-through.
func NewEncryptor(secret string) (*encryptor, error) {
	if secret == "" {
		return &encryptor{gcm: nil}, nil
	}
	if len(secret) < 16 {
		return nil, fmt.Errorf("encryption secret must be at least 16 characters")
	}

	key := pbkdf2.Key([]byte(secret), []byte(kdfSalt), kdfIterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &encryptor{gcm: gcm}, nil
}

func (e *encryptor) EncryptIfEnabled(plaintext string) (string, error) {
	if plaintext == "" || e.gcm == nil {
		return plaintext, nil
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := e.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	// Prepend nonce to ciphertext for storage
	result := append(nonce, ciphertext...)
	return base64.StdEncoding.EncodeToString(result), nil
}

func (e *encryptor) DecryptIfEnabled(ciphertext string) (string, error) {
	if ciphertext == "" || e.gcm == nil {
		return ciphertext, nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, payload := data[:nonceSize], data[nonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, payload, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}
