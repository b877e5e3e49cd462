/*
Package authclient provides an HTTP client for a hasura-auth compatible identity backend.

# Overview

The client is a thin, stateless wrapper around the backend's JSON endpoints. It does not keep
tokens between calls; the session manager in package session owns that state and passes the
access or refresh token into each call that needs one.

	client := authclient.NewClient("https://auth.example.com/v1")
	client.ClientURL = "https://app.example.com"

	res, err := client.SignInEmailPassword(ctx, "jane@example.com", "hunter22")
	if err != nil {
		var apiErr *authclient.APIError
		if errors.As(err, &apiErr) {
			// apiErr.Status, apiErr.Code, apiErr.Message
		}
	}
	if res.MFA != nil {
		res, err = client.SignInMFATOTP(ctx, res.MFA.Ticket, otp)
	}

# Errors

Every call returns one of two typed errors on failure:

  - *TransportError: no HTTP response was received (connection refused, DNS failure,
    timeout, cancelled context).
  - *APIError: the backend answered with a non-2xx status. The body shape
    {status, error, message} is decoded into Status, Code and Message.

Security-key ceremonies additionally return ErrNoAuthenticator or a *CeremonyError.

# Redirects

Options.RedirectTo is rewritten against Client.ClientURL: an empty value becomes the client
URL and a value starting with "/" is joined onto it.

# WebAuthn

The browser or OS credential ceremony is delegated to an Authenticator. The client performs
the two backend round trips (options, verify) around it.
*/
package authclient
