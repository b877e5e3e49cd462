package session

import (
	"fmt"
	"net/url"
)

// Redirect types sent by the backend in email links.
const (
	RedirectSignInPasswordless = "signinPasswordless"
	RedirectEmailVerify        = "emailVerify"
	RedirectEmailConfirmChange = "emailConfirmChange"
	RedirectPasswordReset      = "passwordReset"
)

// Redirect holds the parameters the backend appends to a redirect URL.
type Redirect struct {
	RefreshToken     string
	Type             string
	Error            string
	ErrorDescription string
}

// Empty reports whether the redirect carries neither a token nor an error.
func (r *Redirect) Empty() bool {
	return r == nil || (r.RefreshToken == "" && r.Error == "")
}

// ParseRedirect reads the redirect parameters from the query and the fragment of rawURL.
// Query values take precedence.
func ParseRedirect(rawURL string) (*Redirect, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redirect url: %w", err)
	}

	query := u.Query()
	fragment, err := url.ParseQuery(u.Fragment)
	if err != nil {
		fragment = url.Values{}
	}

	get := func(key string) string {
		if v := query.Get(key); v != "" {
			return v
		}
		return fragment.Get(key)
	}

	return &Redirect{
		RefreshToken:     get("refreshToken"),
		Type:             get("type"),
		Error:            get("error"),
		ErrorDescription: get("errorDescription"),
	}, nil
}
