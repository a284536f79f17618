package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// ErrDecrypt wraps every decryption failure so callers can distinguish
// unreadable ciphertext from transport or storage errors.
var ErrDecrypt = errors.New("decrypt failed")

type Service interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// NoopService passes tokens through without encryption (dev/test mode).
type NoopService struct{}

func (NoopService) Encrypt(plaintext string) (string, error)  { return plaintext, nil }
func (NoopService) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }

type AesGcmCryptoService struct {
	gcm cipher.AEAD
}

// NormalizeKey derives the AES-256 key bytes from a configured secret:
// truncate to 32 bytes, or right-pad with '0' characters when shorter.
// Two secrets sharing a 32-byte prefix yield the same key.
func NormalizeKey(secret string) []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = '0'
	}
	copy(key, secret)
	return key
}

func NewAesGcmCryptoService(secret string) (*AesGcmCryptoService, error) {
	if secret == "" {
		return nil, fmt.Errorf("encryption key must not be empty")
	}

	block, err := aes.NewCipher(NormalizeKey(secret))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	service := AesGcmCryptoService{gcm: gcm}
	return &service, nil
}

func (c *AesGcmCryptoService) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the encrypted data to nonce, returning nonce || ciphertext || tag
	ciphertext := c.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(ciphertext), nil
}

func (c *AesGcmCryptoService) Decrypt(ciphertext string) (string, error) {
	buffer, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: invalid hex: %w", ErrDecrypt, err)
	}

	nonceSize := c.gcm.NonceSize()
	if len(buffer) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce, cipherBytes := buffer[:nonceSize], buffer[nonceSize:]
	plainBytes, err := c.gcm.Open(nil, nonce, cipherBytes, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecrypt, err)
	}

	return string(plainBytes), nil
}
