// Package vault provides authenticated encryption for secrets at rest and
// generation of random secrets and recovery codes.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/veridian-id/veridian/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("VAULT")

var (
	CodeEncryptionFailed = ErrRegistry.Register("ENCRYPTION_FAILED", errx.TypeExternal, http.StatusBadGateway, "Failed to encrypt secret")
	CodeDecryptionFailed = ErrRegistry.Register("DECRYPTION_FAILED", errx.TypeExternal, http.StatusBadGateway, "Failed to decrypt secret - possible tampering or wrong key")
	CodeInvalidKey       = ErrRegistry.Register("INVALID_KEY", errx.TypeInternal, http.StatusInternalServerError, "Encryption key must be 32 bytes")
)

// Vault encrypts and decrypts secrets with AES-256-GCM. The random nonce is
// prepended to the ciphertext and the whole blob is base64-encoded.
type Vault struct {
	aead cipher.AEAD
}

// New builds a Vault from a base64-encoded 32-byte key.
func New(encodedKey string) (*Vault, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, ErrRegistry.NewWithCause(CodeInvalidKey, err)
	}
	if len(key) != 32 {
		return nil, ErrRegistry.New(CodeInvalidKey).WithDetail("length", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrRegistry.NewWithCause(CodeInvalidKey, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrRegistry.NewWithCause(CodeInvalidKey, err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext and returns the base64 blob.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", ErrRegistry.NewWithCause(CodeEncryptionFailed, err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Any tampering with the
// ciphertext fails authentication and is surfaced as a decryption error.
func (v *Vault) Decrypt(encoded string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrRegistry.NewWithCause(CodeDecryptionFailed, err)
	}
	if len(blob) < v.aead.NonceSize() {
		return "", ErrRegistry.New(CodeDecryptionFailed)
	}

	nonce, ciphertext := blob[:v.aead.NonceSize()], blob[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrRegistry.NewWithCause(CodeDecryptionFailed, err)
	}
	return string(plaintext), nil
}
