package jwtx

import (
	"slices"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HasuraClaimsKey is the namespace hasura-auth puts its claims under.
const HasuraClaimsKey = "https://hasura.io/jwt/claims"

// HasuraClaims are the x-hasura-* session variables carried by access tokens.
type HasuraClaims struct {
	AllowedRoles []string `json:"x-hasura-allowed-roles"`
	DefaultRole  string   `json:"x-hasura-default-role"`
	UserID       string   `json:"x-hasura-user-id"`

	// IsAnonymous is a string because hasura session variables are always strings.
	IsAnonymous string `json:"x-hasura-user-is-anonymous"`
}

// Claims are the access-token claims issued by a hasura-auth backend.
type Claims struct {
	jwt.RegisteredClaims

	Hasura HasuraClaims `json:"https://hasura.io/jwt/claims"`
}

// NewAccessClaims builds access-token claims for userID.
func NewAccessClaims(
	userID, defaultRole string,
	roles []string,
	anonymous bool,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Hasura: HasuraClaims{
			AllowedRoles: roles,
			DefaultRole:  defaultRole,
			UserID:       userID,
			IsAnonymous:  strconv.FormatBool(anonymous),
		},
	}
}

// Anonymous reports whether the token belongs to an anonymous user.
func (c *Claims) Anonymous() bool {
	b, _ := strconv.ParseBool(c.Hasura.IsAnonymous)
	return b
}

// HasRole reports whether role is among the allowed roles.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Hasura.AllowedRoles, role)
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateExpiryAt checks exp and nbf against now with a small grace period for clock skew.
func (c *Claims) ValidateExpiryAt(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}

	return nil
}

// ExpiresIn returns how long the token stays valid after now. It is zero for tokens
// without an exp claim or already expired.
func (c *Claims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(c.ExpiresAt.Sub(now), 0)
}

// Inspect decodes the claims of token without verifying its signature. The client
// uses it to read the user and expiry out of tokens it already trusts.
func Inspect(token string) (*Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, ErrMalformed
	}
	return &claims, nil
}
