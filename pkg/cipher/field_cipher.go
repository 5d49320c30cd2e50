// Package cipher encrypts individual string fields for storage.
//
// Ciphertext is base64url(nonce || XChaCha20-Poly1305 sealed box). The AEAD key is
// derived from the configured secret with HKDF-SHA256, so any secret length works
// and tampering is detected on Decrypt.
package cipher

import (
	stdcipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/oksasatya/referral-tree/pkg/apperror"
)

const keyInfo = "referral-tree/member-field/v1"

var ErrEmptySecret = errors.New("cipher: secret key is empty")

// FieldCipher is safe for concurrent use; its key is fixed at construction.
type FieldCipher struct {
	aead stdcipher.AEAD
}

// New derives the field key from secret.
func New(secret string) (*FieldCipher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("cipher: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: init aead: %w", err)
	}
	return &FieldCipher{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce. The empty string is a valid input.
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("cipher: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Empty, malformed or tampered input
// fails with a decryption_error.
func (c *FieldCipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", apperror.New(apperror.KindDecryption, "ciphertext is empty")
	}
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", apperror.Wrap(apperror.KindDecryption, "ciphertext is not valid base64", err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return "", apperror.New(apperror.KindDecryption, "ciphertext is too short")
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", apperror.Wrap(apperror.KindDecryption, "ciphertext failed authentication", err)
	}
	return string(plain), nil
}
