package authclient

import (
	"context"
	"encoding/json"
)

// SignUpEmailPassword registers a new user. The session is nil when the backend requires
// email verification before the first sign-in.
func (c *Client) SignUpEmailPassword(ctx context.Context, email, password string, opts *Options) (*AuthResponse, error) {
	req := struct {
		Email    string   `json:"email"`
		Password string   `json:"password"`
		Options  *Options `json:"options,omitempty"`
	}{email, password, c.rewriteRedirectTo(opts)}

	var res AuthResponse
	if err := c.post(ctx, "/signup/email-password", req, &res, ""); err != nil {
		return nil, err
	}
	return &res, nil
}

// SignUpSecurityKey registers a new user with a WebAuthn security key.
func (c *Client) SignUpSecurityKey(ctx context.Context, email string, opts *Options) (*AuthResponse, error) {
	if c.Authenticator == nil {
		return nil, ErrNoAuthenticator
	}

	opts = c.rewriteRedirectTo(opts)
	var nickname, redirectTo string
	if opts != nil {
		nickname = opts.Nickname
		redirectTo = opts.RedirectTo
	}

	req := struct {
		Email   string   `json:"email"`
		Options *Options `json:"options,omitempty"`
	}{email, opts}

	var creation json.RawMessage
	if err := c.post(ctx, "/signup/webauthn", req, &creation, ""); err != nil {
		return nil, err
	}

	credential, err := c.Authenticator.Register(ctx, creation)
	if err != nil {
		return nil, &CeremonyError{Err: err}
	}

	verify := webauthnVerifyRequest{
		Credential: credential,
		Options:    &verifyOptions{RedirectTo: redirectTo, Nickname: nickname},
	}

	var res AuthResponse
	if err := c.post(ctx, "/signup/webauthn/verify", verify, &res, ""); err != nil {
		return nil, err
	}
	return &res, nil
}

// Deanonymize converts the anonymous user owning accessToken into a credentialed user.
func (c *Client) Deanonymize(ctx context.Context, accessToken string, req DeanonymizeRequest) (*AuthResponse, error) {
	req.Options = c.rewriteRedirectTo(req.Options)

	var res AuthResponse
	if err := c.post(ctx, "/user/deanonymize", req, &res, accessToken); err != nil {
		return nil, err
	}
	return &res, nil
}
