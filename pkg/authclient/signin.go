package authclient

import (
	"context"
	"encoding/json"
)

// SignInEmailPassword signs a user in with email and password.
// The response carries either a session or an MFA ticket.
func (c *Client) SignInEmailPassword(ctx context.Context, email, password string) (*AuthResponse, error) {
	req := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password}

	var res AuthResponse
	if err := c.post(ctx, "/signin/email-password", req, &res, ""); err != nil {
		return nil, err
	}
	return &res, nil
}

// SignInPasswordlessEmail sends a magic link to the given email address.
// The response never carries a session.
func (c *Client) SignInPasswordlessEmail(ctx context.Context, email string, opts *Options) (*AuthResponse, error) {
	req := struct {
		Email   string   `json:"email"`
		Options *Options `json:"options,omitempty"`
	}{email, c.rewriteRedirectTo(opts)}

	if err := c.post(ctx, "/signin/passwordless/email", req, nil, ""); err != nil {
		return nil, err
	}
	return &AuthResponse{}, nil
}

// SignInPasswordlessSMS sends a one-time code to the given phone number.
func (c *Client) SignInPasswordlessSMS(ctx context.Context, phoneNumber string, opts *Options) (*AuthResponse, error) {
	req := struct {
		PhoneNumber string   `json:"phoneNumber"`
		Options     *Options `json:"options,omitempty"`
	}{phoneNumber, c.rewriteRedirectTo(opts)}

	if err := c.post(ctx, "/signin/passwordless/sms", req, nil, ""); err != nil {
		return nil, err
	}
	return &AuthResponse{}, nil
}

// SignInPasswordlessSMSOTP completes a passwordless SMS sign-in with the received code.
func (c *Client) SignInPasswordlessSMSOTP(ctx context.Context, phoneNumber, otp string) (*AuthResponse, error) {
	req := struct {
		PhoneNumber string `json:"phoneNumber"`
		OTP         string `json:"otp"`
	}{phoneNumber, otp}

	var res AuthResponse
	if err := c.post(ctx, "/signin/passwordless/sms/otp", req, &res, ""); err != nil {
		return nil, err
	}
	return &res, nil
}

// SignInAnonymous creates an anonymous user and signs it in.
func (c *Client) SignInAnonymous(ctx context.Context, opts *Options) (*AuthResponse, error) {
	var body any
	if opts != nil {
		body = opts
	}

	var res AuthResponse
	if err := c.post(ctx, "/signin/anonymous", body, &res, ""); err != nil {
		return nil, err
	}
	return &res, nil
}

// SignInMFATOTP completes a sign-in that returned an MFA ticket.
func (c *Client) SignInMFATOTP(ctx context.Context, ticket, otp string) (*AuthResponse, error) {
	req := struct {
		Ticket string `json:"ticket"`
		OTP    string `json:"otp"`
	}{ticket, otp}

	var res AuthResponse
	if err := c.post(ctx, "/signin/mfa/totp", req, &res, ""); err != nil {
		return nil, err
	}
	return &res, nil
}

// SignInPAT signs in with a personal access token.
func (c *Client) SignInPAT(ctx context.Context, pat string) (*AuthResponse, error) {
	req := struct {
		PersonalAccessToken string `json:"personalAccessToken"`
	}{pat}

	var res AuthResponse
	if err := c.post(ctx, "/signin/pat", req, &res, ""); err != nil {
		return nil, err
	}
	return &res, nil
}

// SignInSecurityKey signs in with a WebAuthn security key. It fetches the request
// options, runs the assertion ceremony through the Authenticator and verifies the
// resulting credential.
func (c *Client) SignInSecurityKey(ctx context.Context, email string) (*AuthResponse, error) {
	if c.Authenticator == nil {
		return nil, ErrNoAuthenticator
	}

	req := struct {
		Email string `json:"email"`
	}{email}

	var options json.RawMessage
	if err := c.post(ctx, "/signin/webauthn", req, &options, ""); err != nil {
		return nil, err
	}

	credential, err := c.Authenticator.Authenticate(ctx, options)
	if err != nil {
		return nil, &CeremonyError{Err: err}
	}

	var res AuthResponse
	verify := webauthnVerifyRequest{Email: email, Credential: credential}
	if err := c.post(ctx, "/signin/webauthn/verify", verify, &res, ""); err != nil {
		return nil, err
	}
	return &res, nil
}
