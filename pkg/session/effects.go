package session

import (
	"github.com/aussiebroadwan/authsession/pkg/authclient"
	"github.com/aussiebroadwan/authsession/pkg/autherr"
	"github.com/aussiebroadwan/authsession/pkg/session/flow"
)

// Effect is an instruction returned by Reduce for the driver to carry out.
type Effect interface{ effect() }

// Op names a backend operation.
type Op int

const (
	OpNone Op = iota
	OpSignInPassword
	OpSignInPasswordlessEmail
	OpSignInPasswordlessSMS
	OpSignInPasswordlessSMSOTP
	OpSignInAnonymous
	OpSignInSecurityKey
	OpSignInPAT
	OpSignInMFATOTP
	OpSignUpEmailPassword
	OpSignUpSecurityKey
	OpDeanonymize
	OpRefreshToken
	OpImportToken
	OpSignOut
	OpChangeEmail
	OpChangePassword
	OpGenerateTOTP
	OpActivateMFA
)

var opNames = map[Op]string{
	OpNone:                     "none",
	OpSignInPassword:           "signin_password",
	OpSignInPasswordlessEmail:  "signin_passwordless_email",
	OpSignInPasswordlessSMS:    "signin_passwordless_sms",
	OpSignInPasswordlessSMSOTP: "signin_passwordless_sms_otp",
	OpSignInAnonymous:          "signin_anonymous",
	OpSignInSecurityKey:        "signin_security_key",
	OpSignInPAT:                "signin_pat",
	OpSignInMFATOTP:            "signin_mfa_totp",
	OpSignUpEmailPassword:      "signup_email_password",
	OpSignUpSecurityKey:        "signup_security_key",
	OpDeanonymize:              "deanonymize",
	OpRefreshToken:             "refresh_token",
	OpImportToken:              "import_token",
	OpSignOut:                  "signout",
	OpChangeEmail:              "change_email",
	OpChangePassword:           "change_password",
	OpGenerateTOTP:             "generate_totp",
	OpActivateMFA:              "activate_mfa",
}

func (o Op) String() string { return opNames[o] }

// Site is the classifier site for errors returned by o.
func (o Op) Site() autherr.Site {
	switch o {
	case OpSignInPassword:
		return autherr.SiteSignInPassword
	case OpSignInPasswordlessEmail, OpSignInPasswordlessSMS:
		return autherr.SiteSignInPasswordless
	case OpSignInPasswordlessSMSOTP:
		return autherr.SiteSignInOTP
	case OpSignInAnonymous:
		return autherr.SiteSignInAnonymous
	case OpSignInSecurityKey:
		return autherr.SiteSignInSecurityKey
	case OpSignInPAT:
		return autherr.SiteSignInPAT
	case OpSignInMFATOTP:
		return autherr.SiteSignInMFA
	case OpSignUpEmailPassword:
		return autherr.SiteSignUp
	case OpSignUpSecurityKey:
		return autherr.SiteSignUpSecurityKey
	case OpDeanonymize:
		return autherr.SiteDeanonymize
	case OpRefreshToken:
		return autherr.SiteRefresh
	case OpImportToken:
		return autherr.SiteImport
	case OpSignOut:
		return autherr.SiteSignOut
	case OpChangeEmail:
		return autherr.SiteChangeEmail
	case OpChangePassword:
		return autherr.SiteChangePassword
	case OpGenerateTOTP, OpActivateMFA:
		return autherr.SiteMFAEnrollment
	default:
		return autherr.SiteUnknown
	}
}

// signUp reports whether o registers a new user.
func (o Op) signUp() bool {
	return o == OpSignUpEmailPassword || o == OpSignUpSecurityKey
}

// flowKind returns the sub-flow that owns o.
func (o Op) flowKind() (flow.Kind, bool) {
	switch o {
	case OpChangeEmail:
		return flow.KindChangeEmail, true
	case OpChangePassword:
		return flow.KindChangePassword, true
	case OpGenerateTOTP, OpActivateMFA:
		return flow.KindMFA, true
	}
	return 0, false
}

func flowOp(a flow.Action) Op {
	switch a {
	case flow.ActionChangeEmail:
		return OpChangeEmail
	case flow.ActionChangePassword:
		return OpChangePassword
	case flow.ActionGenerateTOTP:
		return OpGenerateTOTP
	case flow.ActionActivateMFA:
		return OpActivateMFA
	}
	return OpNone
}

// Call asks the driver to invoke the backend and report back with a Completed event
// carrying the same Op and Seq. Only the fields the operation needs are set.
type Call struct {
	Op  Op
	Seq uint64

	Email        string
	Password     string
	PhoneNumber  string
	OTP          string
	Ticket       string
	PAT          string
	Code         string
	AccessToken  string
	RefreshToken string
	All          bool
	Options      *authclient.Options
	Deanonymize  *authclient.DeanonymizeRequest
}

// Persist writes Value under Key in storage. A nil Value removes the key.
type Persist struct {
	Key   string
	Value *string
}

// Notification is reported to subscribers after an event is applied.
type Notification string

const (
	NotifySignedIn     Notification = "SIGNED_IN"
	NotifySignedOut    Notification = "SIGNED_OUT"
	NotifyTokenChanged Notification = "TOKEN_CHANGED"
)

// Notify delivers Notification to subscribers.
type Notify struct {
	Notification Notification
}

func (Call) effect()    {}
func (Persist) effect() {}
func (Notify) effect()  {}
