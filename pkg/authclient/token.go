package authclient

import "context"

// RefreshToken exchanges a refresh token for a new session.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	req := struct {
		RefreshToken string `json:"refreshToken"`
	}{refreshToken}

	var session Session
	if err := c.post(ctx, "/token", req, &session, ""); err != nil {
		return nil, err
	}
	return &session, nil
}

// SignOut revokes the refresh token, or every refresh token of the user when all is set.
func (c *Client) SignOut(ctx context.Context, refreshToken string, all bool) error {
	req := struct {
		RefreshToken string `json:"refreshToken"`
		All          bool   `json:"all"`
	}{refreshToken, all}

	return c.post(ctx, "/signout", req, nil, "")
}
