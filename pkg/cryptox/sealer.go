package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// sealerInfo binds derived keys to their purpose.
const sealerInfo = "authsession/storage/v1"

var (
	ErrEmptyKey     = errors.New("cryptox: empty key material")
	ErrSealedFormat = errors.New("cryptox: sealed value malformed")
)

// Sealer encrypts short secrets such as refresh tokens before they reach storage.
// Sealed values are base64url strings of [24-byte nonce][ciphertext][16-byte tag].
type Sealer struct {
	key []byte
}

// NewSealer derives an XChaCha20-Poly1305 key from keyMaterial with HKDF-SHA256.
func NewSealer(keyMaterial []byte) (*Sealer, error) {
	if len(keyMaterial) == 0 {
		return nil, ErrEmptyKey
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, keyMaterial, nil, []byte(sealerInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("cryptox: derive key: %w", err)
	}

	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext. The associated data is authenticated but not stored.
func (s *Sealer) Seal(plaintext, associated string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("cryptox: create aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("cryptox: generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(associated))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal with the same associated data.
func (s *Sealer) Open(sealed, associated string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrSealedFormat
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("cryptox: create aead: %w", err)
	}

	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrSealedFormat
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(associated))
	if err != nil {
		return "", fmt.Errorf("cryptox: decryption failed: %w", err)
	}

	return string(plaintext), nil
}
