// Package storage persists the refresh token between runs. Drivers live under
// drivers/, and Encrypted seals values before they reach any of them.
package storage

import (
	"context"
	"errors"
)

// Keys written by the session machine.
const (
	RefreshTokenKey          = "nhostRefreshToken"
	RefreshTokenExpiresAtKey = "nhostRefreshTokenExpiresAt"
)

var ErrClosed = errors.New("storage: closed")

// Storage is a string key/value store. Set with a nil value removes the key.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value *string) error
}

// Value returns a pointer to s, for Set calls.
func Value(s string) *string { return &s }
