package authclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ============================================================================
// Backend Errors
// ============================================================================

// APIError is returned when the backend answered with a non-2xx status.
type APIError struct {
	// Status is the HTTP status code of the response
	Status int `json:"status"`

	// Code is the backend error code (e.g. "invalid-email-password")
	Code string `json:"error"`

	// Message is the human-readable message sent by the backend
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("authclient: %d %s: %s", e.Status, e.Code, e.Message)
}

// TransportError is returned when no HTTP response was received at all.
type TransportError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("authclient: request to %s failed: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ============================================================================
// WebAuthn Errors
// ============================================================================

// ErrNoAuthenticator is returned by security-key calls when Client.Authenticator is nil.
var ErrNoAuthenticator = errors.New("authclient: no webauthn authenticator configured")

// CeremonyError wraps a failure reported by the Authenticator.
type CeremonyError struct {
	Err error
}

// Error implements the error interface.
func (e *CeremonyError) Error() string {
	return "authclient: webauthn ceremony failed: " + e.Err.Error()
}

func (e *CeremonyError) Unwrap() error { return e.Err }

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into an *APIError. The HTTP status is
// authoritative; the body only contributes the error code and message.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		apiErr.Code = errResp.Error
		apiErr.Message = errResp.Message
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	return apiErr
}
