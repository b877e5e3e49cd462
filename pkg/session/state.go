package session

// ============================================================================
// Region A: authentication
// ============================================================================

// AuthState is the state of the authentication region.
type AuthState int

const (
	AuthStarting AuthState = iota
	AuthImporting
	AuthRetryImport
	AuthSignedOutNoErrors
	AuthSignedOutSuccess
	AuthSignedOutNeedsVerification
	AuthSignedOutNeedsMFA
	AuthSignedOutFailed
	AuthAuthenticating
	AuthRegistering
	AuthSignedIn
	AuthSigningOut
)

var authNames = map[AuthState]string{
	AuthStarting:                   "authentication.starting",
	AuthImporting:                  "authentication.importing",
	AuthRetryImport:                "authentication.retryImport",
	AuthSignedOutNoErrors:          "authentication.signedOut.noErrors",
	AuthSignedOutSuccess:           "authentication.signedOut.success",
	AuthSignedOutNeedsVerification: "authentication.signedOut.needsVerification",
	AuthSignedOutNeedsMFA:          "authentication.signedOut.needsMfa",
	AuthSignedOutFailed:            "authentication.signedOut.failed",
	AuthAuthenticating:             "authentication.authenticating",
	AuthRegistering:                "authentication.registering",
	AuthSignedIn:                   "authentication.signedIn",
	AuthSigningOut:                 "authentication.signingOut",
}

func (s AuthState) String() string { return authNames[s] }

// SignedOut reports whether s is one of the signedOut substates.
func (s AuthState) SignedOut() bool {
	return s >= AuthSignedOutNoErrors && s <= AuthSignedOutFailed
}

// Busy reports whether the region waits for a backend call.
func (s AuthState) Busy() bool {
	switch s {
	case AuthImporting, AuthAuthenticating, AuthRegistering, AuthSigningOut:
		return true
	}
	return false
}

// Loading reports whether the session is still being established at startup.
func (s AuthState) Loading() bool {
	return s == AuthStarting || s == AuthImporting || s == AuthRetryImport
}

// ============================================================================
// Region B: registration
// ============================================================================

// RegState is the state of the registration region.
type RegState int

const (
	RegIncomplete RegState = iota
	RegNeedsEmailVerification
	RegNeedsOTP
	RegFailed
	RegDeanonymizing
	RegComplete
)

var regNames = map[RegState]string{
	RegIncomplete:             "registration.incomplete.noErrors",
	RegNeedsEmailVerification: "registration.incomplete.needsEmailVerification",
	RegNeedsOTP:               "registration.incomplete.needsOtp",
	RegFailed:                 "registration.incomplete.failed",
	RegDeanonymizing:          "registration.deanonymizing",
	RegComplete:               "registration.complete",
}

func (s RegState) String() string { return regNames[s] }

// ============================================================================
// Region C: refresh scheduler
// ============================================================================

// RefreshState is the state of the refresh scheduler.
type RefreshState int

const (
	RefreshIdle RefreshState = iota
	RefreshPending
	RefreshRefreshing
	RefreshFailed
	RefreshDisabled
)

var refreshNames = map[RefreshState]string{
	RefreshIdle:       "refreshTimer.idle",
	RefreshPending:    "refreshTimer.running.pending",
	RefreshRefreshing: "refreshTimer.running.refreshing",
	RefreshFailed:     "refreshTimer.failed",
	RefreshDisabled:   "refreshTimer.disabled",
}

func (s RefreshState) String() string { return refreshNames[s] }

// Running reports whether the scheduler holds a live timer.
func (s RefreshState) Running() bool {
	return s == RefreshPending || s == RefreshRefreshing
}
