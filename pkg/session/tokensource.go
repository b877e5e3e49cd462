package session

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/aussiebroadwan/authsession/pkg/jwtx"
)

// ErrNotAuthenticated is returned by the token source while nobody is signed in.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// AccessToken returns the current access token, or "" when signed out.
func (m *Machine) AccessToken() string {
	return m.Snapshot().Context.AccessToken.Value
}

// TokenSource exposes the session's access token to oauth2 aware clients. The machine
// keeps the token fresh; the source only reads it.
func (m *Machine) TokenSource() oauth2.TokenSource {
	return &tokenSource{m: m}
}

// HTTPClient returns a client that sends the access token as a bearer credential.
func (m *Machine) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, m.TokenSource())
}

type tokenSource struct {
	m *Machine
}

func (t *tokenSource) Token() (*oauth2.Token, error) {
	s := t.m.Snapshot()
	at := s.Context.AccessToken
	if at.Value == "" {
		return nil, ErrNotAuthenticated
	}

	tok := &oauth2.Token{
		AccessToken:  at.Value,
		TokenType:    "Bearer",
		RefreshToken: s.Context.RefreshToken,
		Expiry:       at.ExpiresAt,
	}
	if claims, err := jwtx.Inspect(at.Value); err == nil && claims.ExpiresAt != nil {
		tok.Expiry = claims.ExpiresAt.Time
	}
	return tok, nil
}
