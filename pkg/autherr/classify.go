package autherr

import (
	"context"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/authsession/pkg/authclient"
)

// Site identifies the call an error came from. Generic 401s and 409s are named after
// the site.
type Site int

const (
	SiteUnknown Site = iota
	SiteSignInPassword
	SiteSignInPasswordless
	SiteSignInOTP
	SiteSignInMFA
	SiteSignInAnonymous
	SiteSignInSecurityKey
	SiteSignInPAT
	SiteSignUp
	SiteSignUpSecurityKey
	SiteDeanonymize
	SiteRefresh
	SiteImport
	SiteSignOut
	SiteChangeEmail
	SiteChangePassword
	SiteMFAEnrollment
)

// unverifiedMessage is the message hasura-auth sends for unverified accounts.
const unverifiedMessage = "Email is not verified"

// Classify maps err, returned by a call made at site, to a Record.
func Classify(err error, site Site) Record {
	if err == nil {
		return Record{}
	}

	var local *Error
	if errors.As(err, &local) {
		return local.Record
	}

	if isNetwork(err) {
		return Network
	}

	var ceremony *authclient.CeremonyError
	if errors.Is(err, authclient.ErrNoAuthenticator) || errors.As(err, &ceremony) {
		return Record{
			Error:   CodeInvalidWebAuthnAuthenticator,
			Message: err.Error(),
			Status:  StatusValidation,
		}
	}

	var apiErr *authclient.APIError
	if !errors.As(err, &apiErr) {
		return Record{Error: CodeRequestFailed, Message: err.Error(), Status: StatusNetwork}
	}

	switch {
	case apiErr.Status == http.StatusUnauthorized &&
		(apiErr.Message == unverifiedMessage || apiErr.Code == "unverified-user"):
		return Record{Error: CodeUnverifiedEmail, Message: apiErr.Message, Status: apiErr.Status}

	case apiErr.Status == http.StatusConflict:
		code := CodeEmailAlreadyInUse
		if site == SiteDeanonymize || site == SiteSignInAnonymous {
			code = CodeExistingUser
		}
		return Record{Error: code, Message: apiErr.Message, Status: apiErr.Status}

	case apiErr.Status == http.StatusUnauthorized:
		return Record{Error: unauthorizedCode(site), Message: apiErr.Message, Status: apiErr.Status}
	}

	code := apiErr.Code
	if code == "" {
		code = CodeRequestFailed
		if apiErr.Status >= http.StatusInternalServerError {
			code = CodeInternal
		}
	}
	return Record{Error: code, Message: apiErr.Message, Status: apiErr.Status}
}

// IsNetwork reports whether r is the network record. Only network failures are retried.
func IsNetwork(r Record) bool {
	return r.Error == CodeNetwork && r.Status == StatusNetwork
}

// IsRetryableImport reports whether a failed token import should be attempted again.
func IsRetryableImport(r Record) bool {
	return IsNetwork(r) || r.Status >= http.StatusInternalServerError
}

func isNetwork(err error) bool {
	var transport *authclient.TransportError
	return errors.As(err, &transport) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func unauthorizedCode(site Site) string {
	switch site {
	case SiteSignInPassword, SiteSignInOTP, SiteSignInMFA, SiteSignInPasswordless:
		return CodeInvalidCredentials
	case SiteRefresh, SiteImport:
		return CodeInvalidRefreshToken
	case SiteSignInPAT:
		return CodeInvalidOrExpiredPAT
	case SiteSignInSecurityKey, SiteSignUpSecurityKey:
		return CodeInvalidWebAuthnAuthenticator
	default:
		return CodeUnauthorized
	}
}
