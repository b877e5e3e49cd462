package autherr

// Codes produced by the classifier and the local validation gate.
const (
	CodeNetwork                      = "network"
	CodeInternal                     = "internal-error"
	CodeRequestFailed                = "request-failed"
	CodeUnverifiedEmail              = "unverified-email"
	CodeEmailAlreadyInUse            = "email-already-in-use"
	CodeExistingUser                 = "existing-user"
	CodeInvalidCredentials           = "invalid-credentials"
	CodeUnauthorized                 = "unauthorized"
	CodeInvalidEmail                 = "invalid-email"
	CodeInvalidPassword              = "invalid-password"
	CodeInvalidPhoneNumber           = "invalid-phone-number"
	CodeNoMFATicket                  = "no-mfa-ticket"
	CodeInvalidMFATicket             = "invalid-mfa-ticket"
	CodeInvalidMFACode               = "invalid-mfa-code"
	CodeInvalidRefreshToken          = "invalid-refresh-token"
	CodeInvalidOrExpiredPAT          = "invalid-or-expired-pat"
	CodeInvalidWebAuthnAuthenticator = "invalid-webauthn-authenticator"
	CodeUnauthenticatedUser          = "unauthenticated-user"
	CodeUserNotFound                 = "user-not-found"
)

// Network is the single record used for every request that got no response.
var Network = Record{Error: CodeNetwork, Message: "Network Error", Status: StatusNetwork}

// Local validation records.
var (
	InvalidEmail = Record{
		Error:   CodeInvalidEmail,
		Message: "Email is incorrectly formatted",
		Status:  StatusValidation,
	}
	InvalidPassword = Record{
		Error:   CodeInvalidPassword,
		Message: "Password is incorrectly formatted",
		Status:  StatusValidation,
	}
	InvalidPhoneNumber = Record{
		Error:   CodeInvalidPhoneNumber,
		Message: "Phone number is incorrectly formatted",
		Status:  StatusValidation,
	}
	NoMFATicket = Record{
		Error:   CodeNoMFATicket,
		Message: "No MFA ticket has been provided",
		Status:  StatusValidation,
	}
	InvalidMFATicket = Record{
		Error:   CodeInvalidMFATicket,
		Message: "MFA ticket is invalid",
		Status:  StatusValidation,
	}
	InvalidMFACode = Record{
		Error:   CodeInvalidMFACode,
		Message: "MFA code is incorrectly formatted",
		Status:  StatusValidation,
	}
	InvalidRefreshToken = Record{
		Error:   CodeInvalidRefreshToken,
		Message: "Invalid or expired refresh token",
		Status:  StatusValidation,
	}
	InvalidPAT = Record{
		Error:   CodeInvalidOrExpiredPAT,
		Message: "Invalid or expired personal access token",
		Status:  StatusValidation,
	}
	UnauthenticatedUser = Record{
		Error:   CodeUnauthenticatedUser,
		Message: "User is not authenticated",
		Status:  StatusValidation,
	}
)

// RedirectError builds the record for an error reported through a redirect URL.
func RedirectError(code, description string) Record {
	if description == "" {
		description = code
	}
	return Record{Error: code, Message: description, Status: StatusValidation}
}
