package jwtx

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
)

// JWK represents a public key in JSON Web Key format (RFC 7517). Only the OKP
// fields used by Ed25519 keys are modelled.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
}

// JWKS is a JSON Web Key Set (RFC 7517).
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// NewEd25519JWK builds a JWK for an Ed25519 public key.
// Ed25519 keys use the "OKP" (Octet Key Pair) key type.
func NewEd25519JWK(kid, use, alg string, pub ed25519.PublicKey) JWK {
	return JWK{
		Kty: "OKP",
		Use: use,
		Alg: alg,
		Kid: kid,
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(pub),
	}
}

// SetOf returns the public key set of the given signers.
func SetOf(signers ...Signer) JWKS {
	set := JWKS{Keys: make([]JWK, 0, len(signers))}
	for _, s := range signers {
		set.Keys = append(set.Keys, s.PublicJWK())
	}
	return set
}

// JSON encodes the set.
func (s JWKS) JSON() json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
