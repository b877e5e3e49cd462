package jwtx_test

import (
	"crypto/ed25519"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/cryptox"
	"github.com/aussiebroadwan/authsession/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const exampleIssuer = "hasura-auth"

func newSigner(t *testing.T, kid string) jwtx.Signer {
	t.Helper()

	key, err := cryptox.GenerateSigningKey()
	require.NoError(t, err)

	signer, err := jwtx.NewEdDSASigner(key, kid)
	require.NoError(t, err)
	return signer
}

func TestEdDSASignAndVerify(t *testing.T) {
	t.Parallel()

	signer := newSigner(t, "test-key-eddsa")
	require.Equal(t, "test-key-eddsa", signer.KID())

	claims := jwtx.NewAccessClaims("user-456", "user", []string{"user"}, false, 5*time.Minute, exampleIssuer, time.Now())
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	set := jwtx.SetOf(signer)
	require.Len(t, set.Keys, 1)
	require.Equal(t, "OKP", set.Keys[0].Kty)
	require.Equal(t, "Ed25519", set.Keys[0].Crv)
	require.Equal(t, "EdDSA", set.Keys[0].Alg)

	verifier, err := jwtx.NewStaticVerifier(set, jwtx.VerifyOptions{Issuer: exampleIssuer})
	require.NoError(t, err)

	parsed, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-456", parsed.Subject)
	require.Equal(t, "user", parsed.Hasura.DefaultRole)
	require.False(t, parsed.Anonymous())
}

func TestEdDSAVerifyFailures(t *testing.T) {
	t.Parallel()

	signer := newSigner(t, "shared")
	other := newSigner(t, "shared")

	verifier, err := jwtx.NewStaticVerifier(jwtx.SetOf(signer), jwtx.VerifyOptions{Issuer: exampleIssuer})
	require.NoError(t, err)

	t.Run("wrong issuer", func(t *testing.T) {
		claims := jwtx.NewAccessClaims("u", "user", nil, false, time.Minute, "someone-else", time.Now())
		token, err := signer.Sign(claims)
		require.NoError(t, err)

		_, err = verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("expired", func(t *testing.T) {
		claims := jwtx.NewAccessClaims("u", "user", nil, false, time.Minute, exampleIssuer, time.Now().Add(-time.Hour))
		token, err := signer.Sign(claims)
		require.NoError(t, err)

		_, err = verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("signed by another key", func(t *testing.T) {
		claims := jwtx.NewAccessClaims("u", "user", nil, false, time.Minute, exampleIssuer, time.Now())
		token, err := other.Sign(claims)
		require.NoError(t, err)

		// Both signers share a kid, so the lookup succeeds and the signature fails
		_, err = verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("unknown kid", func(t *testing.T) {
		stranger := newSigner(t, "")
		token, err := stranger.Sign(jwtx.NewAccessClaims("u", "user", nil, false, time.Minute, exampleIssuer, time.Now()))
		require.NoError(t, err)

		_, err = verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := verifier.Verify("garbage")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

func TestThumbprintKID(t *testing.T) {
	t.Parallel()

	key, err := cryptox.GenerateSigningKey()
	require.NoError(t, err)

	a, err := jwtx.NewEdDSASigner(key, "")
	require.NoError(t, err)
	b, err := jwtx.NewEdDSASigner(key, "")
	require.NoError(t, err)
	require.Equal(t, a.KID(), b.KID())
	require.Len(t, a.KID(), 43)
	require.Equal(t, jwtx.Thumbprint(key.Public().(ed25519.PublicKey)), a.KID())

	require.NotEqual(t, a.KID(), newSigner(t, "").KID())

	_, err = jwtx.NewEdDSASigner(key[:10], "")
	require.Error(t, err)

	// RFC 8037 appendix A.3
	pub, err := base64.RawURLEncoding.DecodeString("11qYAYKxCrfVS_7TyWQHOg7hcvPapiMlrwIaaPcHURo")
	require.NoError(t, err)
	require.Equal(t, "kPrK_qmxVWaYVA9wwBF6Iuo3vVzz7TxHCTwXBygrS4k", jwtx.Thumbprint(pub))
}

func TestRemoteVerifier(t *testing.T) {
	t.Parallel()

	signer := newSigner(t, "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwtx.SetOf(signer).JSON())
	}))
	t.Cleanup(srv.Close)

	verifier, err := jwtx.NewRemoteVerifier(t.Context(), srv.URL, jwtx.VerifyOptions{Issuer: exampleIssuer})
	require.NoError(t, err)
	t.Cleanup(verifier.Close)

	token, err := signer.Sign(jwtx.NewAccessClaims("u", "user", nil, false, time.Minute, exampleIssuer, time.Now()))
	require.NoError(t, err)

	claims, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "u", claims.Subject)
}
