package jwtx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// VerifyOptions captures common expectations used by verifiers.
type VerifyOptions struct {
	// Issuer the token must have (claims.iss). Empty means "don't care".
	Issuer string

	// Leeway allows small clock skew when validating exp/nbf.
	Leeway time.Duration

	// RefreshInterval controls how often a remote key set is re-fetched.
	RefreshInterval time.Duration

	// HTTPClient is used to fetch remote key sets.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// KeySetVerifier validates tokens against a JWKS, either fetched from the backend or
// given inline.
type KeySetVerifier struct {
	jwks *keyfunc.JWKS
	opts VerifyOptions
}

// NewRemoteVerifier fetches the key set at url and keeps it fresh in the background
// until ctx is done or Close is called.
func NewRemoteVerifier(ctx context.Context, url string, opts VerifyOptions) (*KeySetVerifier, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	refresh := opts.RefreshInterval
	if refresh <= 0 {
		refresh = time.Hour
	}

	jwks, err := keyfunc.Get(url, keyfunc.Options{
		Client:            opts.HTTPClient,
		Ctx:               ctx,
		RefreshInterval:   refresh,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Warn("jwks refresh failed", "url", url, "err", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jwtx: fetch jwks: %w", err)
	}

	return &KeySetVerifier{jwks: jwks, opts: opts}, nil
}

// NewStaticVerifier builds a verifier from a JWKS document.
func NewStaticVerifier(set JWKS, opts VerifyOptions) (*KeySetVerifier, error) {
	jwks, err := keyfunc.NewJSON(set.JSON())
	if err != nil {
		return nil, fmt.Errorf("jwtx: load jwks: %w", err)
	}
	return &KeySetVerifier{jwks: jwks, opts: opts}, nil
}

// Verify validates the signature, issuer and expiry of token.
func (v *KeySetVerifier) Verify(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{
			jwt.SigningMethodEdDSA.Alg(),
			jwt.SigningMethodRS256.Alg(),
			jwt.SigningMethodES256.Alg(),
		}),
		jwt.WithoutClaimsValidation(),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, v.jwks.Keyfunc)
	switch {
	case errors.Is(err, keyfunc.ErrKIDNotFound):
		return nil, ErrUnknownKID
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrInvalidSig
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	case !parsed.Valid:
		return nil, ErrInvalidSig
	}

	if err := claims.ValidateIssuer(v.opts.Issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateExpiryAt(time.Now(), v.opts.Leeway); err != nil {
		return nil, err
	}

	return claims, nil
}

// Close stops the background refresh of a remote key set.
func (v *KeySetVerifier) Close() {
	v.jwks.EndBackground()
}
