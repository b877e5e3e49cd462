package authclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// Authenticator runs WebAuthn ceremonies on behalf of the client. Options and credentials
// are passed through as raw JSON so any platform binding can be plugged in.
type Authenticator interface {
	// Authenticate performs an assertion ceremony with the request options returned by
	// the backend and returns the credential to verify.
	Authenticate(ctx context.Context, options json.RawMessage) (json.RawMessage, error)

	// Register performs an attestation ceremony with the creation options returned by
	// the backend and returns the new credential.
	Register(ctx context.Context, options json.RawMessage) (json.RawMessage, error)
}

// Client is a client for a hasura-auth compatible backend.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// ClientURL is the public URL of the application. It is used to rewrite the
	// redirectTo option of passwordless, sign-up and change-email requests.
	ClientURL string

	// Authenticator is optional. Security-key calls fail with ErrNoAuthenticator
	// when it is nil.
	Authenticator Authenticator
}

// NewClient creates a new backend client with a 10 second request timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// rewriteRedirectTo returns a copy of opts whose RedirectTo is resolved against the
// client URL.
func (c *Client) rewriteRedirectTo(opts *Options) *Options {
	if c.ClientURL == "" {
		return opts
	}

	var out Options
	if opts != nil {
		out = *opts
	}

	base := strings.TrimSuffix(c.ClientURL, "/")
	switch {
	case out.RedirectTo == "":
		out.RedirectTo = base
	case strings.HasPrefix(out.RedirectTo, "/"):
		out.RedirectTo = base + out.RedirectTo
	}

	return &out
}
