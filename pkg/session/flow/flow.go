// Package flow holds the request machines that run while a user is signed in: changing
// the email address, changing the password and enrolling a TOTP second factor.
//
// Each machine moves idle → requesting → idle.<outcome>. Reduce is pure; the caller turns
// a returned Request into a backend call and feeds the outcome back as a Result.
package flow

import (
	"github.com/aussiebroadwan/authsession/pkg/authclient"
	"github.com/aussiebroadwan/authsession/pkg/autherr"
	"github.com/aussiebroadwan/authsession/pkg/validx"
)

// Kind names one of the sub-flows.
type Kind int

const (
	KindChangeEmail Kind = iota
	KindChangePassword
	KindMFA
)

// Kinds lists every sub-flow in reporting order.
var Kinds = []Kind{KindChangeEmail, KindChangePassword, KindMFA}

func (k Kind) String() string {
	switch k {
	case KindChangeEmail:
		return "changeEmail"
	case KindChangePassword:
		return "changePassword"
	case KindMFA:
		return "mfa"
	default:
		return "unknown"
	}
}

// Category is the error slot the flow reports into.
func (k Kind) Category() autherr.Category {
	switch k {
	case KindChangeEmail:
		return autherr.NewEmail
	case KindChangePassword:
		return autherr.NewPassword
	default:
		return autherr.MFA
	}
}

// Value is the top-level state of a flow.
type Value int

const (
	Idle Value = iota
	Requesting
)

// Sub is the outcome recorded while idle.
type Sub int

const (
	NoErrors Sub = iota
	Invalid
	Success
	NeedsVerification
	Failed
)

var subNames = map[Sub]string{
	NoErrors:          "noErrors",
	Invalid:           "invalid",
	Success:           "success",
	NeedsVerification: "needsVerification",
	Failed:            "failed",
}

// Action is the backend call a Request asks for.
type Action int

const (
	ActionNone Action = iota
	ActionChangeEmail
	ActionChangePassword
	ActionGenerateTOTP
	ActionActivateMFA
)

// State is the state of one flow. Action is the call in flight while Requesting.
type State struct {
	Value  Value
	Sub    Sub
	Action Action
	Error  *autherr.Record
}

// String returns the dotted state path, e.g. "idle.needsVerification".
func (s State) String() string {
	if s.Value == Requesting {
		return "requesting"
	}
	return "idle." + subNames[s.Sub]
}

// Request describes the backend call to make. The access token is added by the caller.
type Request struct {
	Action   Action
	Email    string
	Password string
	Ticket   string
	Code     string
	Options  *authclient.Options
}

// Notification is reported to the parent machine after a transition.
type Notification string

const (
	ChangeEmailLoading    Notification = "CHANGE_EMAIL_LOADING"
	ChangeEmailSuccess    Notification = "CHANGE_EMAIL_SUCCESS"
	ChangeEmailInvalid    Notification = "CHANGE_EMAIL_INVALID"
	ChangeEmailError      Notification = "CHANGE_EMAIL_ERROR"
	ChangePasswordLoading Notification = "CHANGE_PASSWORD_LOADING"
	ChangePasswordSuccess Notification = "CHANGE_PASSWORD_SUCCESS"
	ChangePasswordInvalid Notification = "CHANGE_PASSWORD_INVALID"
	ChangePasswordError   Notification = "CHANGE_PASSWORD_ERROR"
	MFALoading            Notification = "MFA_LOADING"
	MFAGenerated          Notification = "MFA_GENERATED"
	MFASuccess            Notification = "MFA_SUCCESS"
	MFAInvalid            Notification = "MFA_INVALID"
	MFAError              Notification = "MFA_ERROR"
)

// Failing reports whether n carries an error for the flow's category.
func (n Notification) Failing() bool {
	switch n {
	case ChangeEmailInvalid, ChangeEmailError,
		ChangePasswordInvalid, ChangePasswordError,
		MFAInvalid, MFAError:
		return true
	}
	return false
}

// ============================================================================
// Events
// ============================================================================

// Event is an input to Reduce.
type Event interface{ flowEvent() }

// RequestEmailChange starts the change-email flow.
type RequestEmailChange struct {
	Email   string
	Options *authclient.Options
}

// RequestPasswordChange starts the change-password flow.
type RequestPasswordChange struct {
	Password string
	Ticket   string
}

// RequestTOTP asks the backend for a new TOTP secret.
type RequestTOTP struct{}

// RequestActivation activates TOTP with a code from the authenticator app.
type RequestActivation struct {
	Code string
}

// Result completes the request in flight. Err is nil on success.
type Result struct {
	Err *autherr.Record
}

// Reset returns the flow to idle.noErrors.
type Reset struct{}

func (RequestEmailChange) flowEvent()    {}
func (RequestPasswordChange) flowEvent() {}
func (RequestTOTP) flowEvent()           {}
func (RequestActivation) flowEvent()     {}
func (Result) flowEvent()                {}
func (Reset) flowEvent()                 {}

// ============================================================================
// Reducer
// ============================================================================

// Reduce applies ev to the flow of kind k. Events that do not belong to k, or that
// arrive while a request is in flight, leave the state untouched.
func Reduce(k Kind, s State, ev Event) (State, *Request, Notification) {
	switch ev := ev.(type) {
	case Reset:
		return State{}, nil, ""

	case Result:
		if s.Value != Requesting {
			return s, nil, ""
		}
		return complete(k, s.Action, ev.Err)
	}

	if s.Value == Requesting {
		return s, nil, ""
	}

	switch ev := ev.(type) {
	case RequestEmailChange:
		if k != KindChangeEmail {
			return s, nil, ""
		}
		if !validx.Email(ev.Email) {
			return invalid(k, autherr.InvalidEmail)
		}
		return requesting(k, Request{Action: ActionChangeEmail, Email: ev.Email, Options: ev.Options})

	case RequestPasswordChange:
		if k != KindChangePassword {
			return s, nil, ""
		}
		if !validx.Password(ev.Password) {
			return invalid(k, autherr.InvalidPassword)
		}
		return requesting(k, Request{Action: ActionChangePassword, Password: ev.Password, Ticket: ev.Ticket})

	case RequestTOTP:
		if k != KindMFA {
			return s, nil, ""
		}
		return requesting(k, Request{Action: ActionGenerateTOTP})

	case RequestActivation:
		if k != KindMFA {
			return s, nil, ""
		}
		if !validx.OTP(ev.Code) {
			return invalid(k, autherr.InvalidMFACode)
		}
		return requesting(k, Request{Action: ActionActivateMFA, Code: ev.Code})
	}

	return s, nil, ""
}

// Fail records err against the flow without a request, e.g. when the user is not signed in.
func Fail(k Kind, err autherr.Record) (State, Notification) {
	return State{Value: Idle, Sub: Failed, Error: &err}, notification(k, Failed)
}

func requesting(k Kind, req Request) (State, *Request, Notification) {
	return State{Value: Requesting, Action: req.Action}, &req, loading(k)
}

func invalid(k Kind, err autherr.Record) (State, *Request, Notification) {
	return State{Value: Idle, Sub: Invalid, Error: &err}, nil, notification(k, Invalid)
}

func complete(k Kind, action Action, err *autherr.Record) (State, *Request, Notification) {
	if err != nil {
		rec := *err
		return State{Value: Idle, Sub: Failed, Error: &rec}, nil, notification(k, Failed)
	}

	sub := Success
	switch action {
	case ActionChangeEmail, ActionGenerateTOTP:
		sub = NeedsVerification
	}

	n := notification(k, Success)
	if action == ActionGenerateTOTP {
		n = MFAGenerated
	}
	return State{Value: Idle, Sub: sub}, nil, n
}

func loading(k Kind) Notification {
	switch k {
	case KindChangeEmail:
		return ChangeEmailLoading
	case KindChangePassword:
		return ChangePasswordLoading
	default:
		return MFALoading
	}
}

// notifications holds the success, invalid and error notification of each kind.
var notifications = map[Kind][3]Notification{
	KindChangeEmail:    {ChangeEmailSuccess, ChangeEmailInvalid, ChangeEmailError},
	KindChangePassword: {ChangePasswordSuccess, ChangePasswordInvalid, ChangePasswordError},
	KindMFA:            {MFASuccess, MFAInvalid, MFAError},
}

func notification(k Kind, sub Sub) Notification {
	n := notifications[k]
	switch sub {
	case Invalid:
		return n[1]
	case Failed:
		return n[2]
	default:
		return n[0]
	}
}
