package storage

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/authsession/pkg/cryptox"
)

// Encrypted seals values before handing them to the wrapped store. The key is bound
// as associated data so a value cannot be replayed under another key.
type Encrypted struct {
	inner  Storage
	sealer *cryptox.Sealer
}

// NewEncrypted wraps inner.
func NewEncrypted(inner Storage, sealer *cryptox.Sealer) *Encrypted {
	return &Encrypted{inner: inner, sealer: sealer}
}

func (e *Encrypted) Get(ctx context.Context, key string) (string, bool, error) {
	sealed, ok, err := e.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}

	plain, err := e.sealer.Open(sealed, key)
	if err != nil {
		return "", false, fmt.Errorf("storage: open %s: %w", key, err)
	}
	return plain, true, nil
}

func (e *Encrypted) Set(ctx context.Context, key string, value *string) error {
	if value == nil {
		return e.inner.Set(ctx, key, nil)
	}

	sealed, err := e.sealer.Seal(*value, key)
	if err != nil {
		return fmt.Errorf("storage: seal %s: %w", key, err)
	}
	return e.inner.Set(ctx, key, &sealed)
}
