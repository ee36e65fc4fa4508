package utils

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// MessageCipher seals direct-message text before it reaches MongoDB and
// opens it on read. ChaCha20-Poly1305 with a random nonce prepended to
// the ciphertext, base64-encoded for storage in a string field.
type MessageCipher struct {
	aead cipher.AEAD
}

// NewMessageCipher builds a cipher from a base64-encoded 32-byte key.
func NewMessageCipher(keyBase64 string) (*MessageCipher, error) {
	if keyBase64 == "" {
		return nil, errors.New("encryption key not set")
	}
	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return nil, errors.New("encryption key must be base64-encoded")
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.New("encryption key must decode to exactly 32 bytes")
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &MessageCipher{aead: aead}, nil
}

// Seal encrypts plaintext. Empty input stays empty.
func (c *MessageCipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Empty input stays empty.
func (c *MessageCipher) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", errors.New("ciphertext is not valid base64")
	}
	if len(raw) < c.aead.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.New("failed to decrypt message")
	}
	return string(plaintext), nil
}
