package jwtx

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer issues access tokens and publishes the key that verifies them.
type Signer interface {
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
}

// EdDSASigner signs with an Ed25519 key, the algorithm hasura-auth uses for its JWKS.
type EdDSASigner struct {
	kid string
	key ed25519.PrivateKey
}

// NewEdDSASigner wraps key. An empty kid defaults to the key's RFC 7638 thumbprint.
func NewEdDSASigner(key ed25519.PrivateKey, kid string) (*EdDSASigner, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New("jwtx: invalid Ed25519 private key size")
	}
	if kid == "" {
		kid = Thumbprint(key.Public().(ed25519.PublicKey))
	}
	return &EdDSASigner{kid: kid, key: key}, nil
}

func (s *EdDSASigner) KID() string { return s.kid }

func (s *EdDSASigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

func (s *EdDSASigner) PublicJWK() JWK {
	return NewEd25519JWK(s.kid, "sig", jwt.SigningMethodEdDSA.Alg(), s.key.Public().(ed25519.PublicKey))
}

// Thumbprint is the base64url SHA-256 of the key's required JWK members in
// lexicographic order.
func Thumbprint(pub ed25519.PublicKey) string {
	canonical := fmt.Sprintf(`{"crv":"Ed25519","kty":"OKP","x":"%s"}`, base64.RawURLEncoding.EncodeToString(pub))
	sum := sha256.Sum256([]byte(canonical))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
