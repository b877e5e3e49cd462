package session

import (
	"github.com/aussiebroadwan/authsession/pkg/authclient"
	"github.com/aussiebroadwan/authsession/pkg/session/flow"
)

// Event is an input to Reduce. The set is closed.
type Event interface{ event() }

// Start resolves the initial session. Session seeds an already known session; otherwise
// the redirect and the stored refresh token are tried, in that order.
type Start struct {
	Session            *authclient.Session
	StoredRefreshToken string
	Redirect           *Redirect
}

// Tick advances the scheduler by one second.
type Tick struct{}

// ============================================================================
// Sign-in and sign-up intents
// ============================================================================

// SignInPassword signs in with email and password. It may end in an MFA challenge.
type SignInPassword struct {
	Email    string
	Password string
}

// SignInPasswordlessEmail sends a magic link. The session arrives later as a redirect.
type SignInPasswordlessEmail struct {
	Email   string
	Options *authclient.Options
}

// SignInPasswordlessSMS sends a one-time code by SMS.
type SignInPasswordlessSMS struct {
	PhoneNumber string
	Options     *authclient.Options
}

// SignInPasswordlessSMSOTP signs in with the code sent by SignInPasswordlessSMS.
type SignInPasswordlessSMSOTP struct {
	PhoneNumber string
	OTP         string
}

// SignInAnonymous creates an anonymous user.
type SignInAnonymous struct {
	Options *authclient.Options
}

// SignInSecurityKey starts a WebAuthn sign-in for email.
type SignInSecurityKey struct {
	Email string
}

// SignInPAT signs in with a personal access token.
type SignInPAT struct {
	PAT string
}

// SignInMFATOTP completes a second-factor challenge. Ticket defaults to the one stored
// by the sign-in that demanded it.
type SignInMFATOTP struct {
	Ticket string
	OTP    string
}

// SignUpEmailPassword registers a user. Without email verification it signs in directly.
type SignUpEmailPassword struct {
	Email    string
	Password string
	Options  *authclient.Options
}

// SignUpSecurityKey starts a WebAuthn registration for email.
type SignUpSecurityKey struct {
	Email   string
	Options *authclient.Options
}

// ============================================================================
// Session intents
// ============================================================================

// SignOut ends the session. All revokes every refresh token of the user.
type SignOut struct {
	All bool
}

// SessionUpdate replaces the session, e.g. with one obtained out of band. A nil session
// or one without a user signs out locally.
type SessionUpdate struct {
	Session *authclient.Session
}

// ============================================================================
// Sub-flow intents
// ============================================================================

// ChangeEmail requests an email change. The new address is confirmed by link.
type ChangeEmail struct {
	Email   string
	Options *authclient.Options
}

// ChangePassword sets a new password. Ticket comes from a password reset link.
type ChangePassword struct {
	Password string
	Ticket   string
}

// GenerateMFA starts TOTP enrollment.
type GenerateMFA struct{}

// ActivateMFA finishes TOTP enrollment with a code from the authenticator app.
type ActivateMFA struct {
	Code string
}

// ============================================================================
// Completions
// ============================================================================

// Completed carries the outcome of a Call effect back into the reducer. Only the fields
// matching the call's operation are set.
type Completed struct {
	Op  Op
	Seq uint64

	Response   *authclient.AuthResponse
	Session    *authclient.Session
	Enrollment *flow.Enrollment
	Err        error
}

func (Start) event()                    {}
func (Tick) event()                     {}
func (SignInPassword) event()           {}
func (SignInPasswordlessEmail) event()  {}
func (SignInPasswordlessSMS) event()    {}
func (SignInPasswordlessSMSOTP) event() {}
func (SignInAnonymous) event()          {}
func (SignInSecurityKey) event()        {}
func (SignInPAT) event()                {}
func (SignInMFATOTP) event()            {}
func (SignUpEmailPassword) event()      {}
func (SignUpSecurityKey) event()        {}
func (SignOut) event()                  {}
func (SessionUpdate) event()            {}
func (ChangeEmail) event()              {}
func (ChangePassword) event()           {}
func (GenerateMFA) event()              {}
func (ActivateMFA) event()              {}
func (Completed) event()                {}
