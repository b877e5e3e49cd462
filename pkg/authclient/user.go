package authclient

import "context"

// ChangeEmail requests an email change for the authenticated user. The backend sends a
// confirmation link to the new address.
func (c *Client) ChangeEmail(ctx context.Context, accessToken, newEmail string, opts *Options) error {
	req := struct {
		NewEmail string   `json:"newEmail"`
		Options  *Options `json:"options,omitempty"`
	}{newEmail, c.rewriteRedirectTo(opts)}

	return c.post(ctx, "/user/email/change", req, nil, accessToken)
}

// ChangePassword sets a new password. The ticket comes from a password reset link and is
// only needed when no access token is available.
func (c *Client) ChangePassword(ctx context.Context, accessToken, newPassword, ticket string) error {
	req := struct {
		NewPassword string `json:"newPassword"`
		Ticket      string `json:"ticket,omitempty"`
	}{newPassword, ticket}

	return c.post(ctx, "/user/password", req, nil, accessToken)
}

// GenerateTOTP creates a new TOTP secret for the authenticated user.
func (c *Client) GenerateTOTP(ctx context.Context, accessToken string) (*TOTPSecret, error) {
	var secret TOTPSecret
	if err := c.get(ctx, "/mfa/totp/generate", &secret, accessToken); err != nil {
		return nil, err
	}
	return &secret, nil
}

// ActivateMFA enables TOTP multi-factor authentication with a code from the
// authenticator app.
func (c *Client) ActivateMFA(ctx context.Context, accessToken, code string) error {
	req := struct {
		Code          string `json:"code"`
		ActiveMFAType string `json:"activeMfaType"`
	}{code, "totp"}

	return c.post(ctx, "/user/mfa", req, nil, accessToken)
}
