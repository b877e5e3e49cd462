package session

import (
	"github.com/aussiebroadwan/authsession/pkg/authclient"
	"github.com/aussiebroadwan/authsession/pkg/autherr"
	"github.com/aussiebroadwan/authsession/pkg/validx"
)

// authentication is region A.
func (r *reducer) authentication(ev Event) {
	switch ev := ev.(type) {
	case Start:
		if r.s.Auth == AuthStarting {
			r.start(ev)
		}

	case SignOut:
		r.signOut(ev)

	case SessionUpdate:
		r.s.auth = pending{}
		r.s.importToken = ""
		r.s.fallbackToken = ""
		if ev.Session == nil || ev.Session.User == nil {
			r.clearContext()
			r.enterSignedOut(AuthSignedOutNoErrors)
			return
		}
		r.saveSession(ev.Session)
		r.enterSignedIn()

	default:
		if r.s.Auth.SignedOut() {
			r.signIn(ev)
		}
	}
}

func (r *reducer) start(ev Start) {
	if ev.Session != nil && ev.Session.User != nil && ev.Session.AccessToken != "" {
		r.saveSession(ev.Session)
		r.enterSignedIn()
		return
	}

	if r.s.Config.AutoSignIn && ev.Redirect != nil {
		switch {
		case ev.Redirect.Error != "":
			r.setError(autherr.Authentication, autherr.RedirectError(ev.Redirect.Error, ev.Redirect.ErrorDescription))
			r.enterSignedOut(AuthSignedOutFailed)
			return

		case ev.Redirect.RefreshToken != "":
			if !validx.UUID(ev.Redirect.RefreshToken) {
				r.setError(autherr.Authentication, autherr.InvalidRefreshToken)
				r.enterSignedOut(AuthSignedOutFailed)
				return
			}
			if ev.StoredRefreshToken != ev.Redirect.RefreshToken {
				r.s.fallbackToken = ev.StoredRefreshToken
			}
			r.importToken(ev.Redirect.RefreshToken, false)
			return
		}
	}

	if ev.StoredRefreshToken != "" {
		r.importToken(ev.StoredRefreshToken, true)
		return
	}

	r.enterSignedOut(AuthSignedOutNoErrors)
}

// importToken exchanges a refresh token found at startup. The token is kept aside until
// the exchange succeeds so the scheduler does not start on it. stored marks a token read
// from storage.
func (r *reducer) importToken(token string, stored bool) {
	r.s.importToken = token
	r.s.importStored = stored
	r.s.importWait = 0
	r.s.Auth = AuthImporting
	r.call(&r.s.auth, Call{Op: OpImportToken, RefreshToken: token})
}

// signIn handles the sign-in and sign-up intents accepted while signed out.
func (r *reducer) signIn(ev Event) {
	c, invalid, ok := r.credentialCall(ev)
	if !ok {
		return
	}

	if invalid != nil {
		if c.Op.signUp() {
			r.setError(autherr.Registration, *invalid)
			r.s.Registration = RegFailed
		} else {
			r.setError(autherr.Authentication, *invalid)
		}
		r.s.Auth = AuthSignedOutFailed
		return
	}

	r.resetErrors()
	r.s.Auth = AuthAuthenticating
	if c.Op.signUp() {
		r.s.Auth = AuthRegistering
	}
	r.call(&r.s.auth, c)
}

// credentialCall validates a sign-in or sign-up intent and builds its call. ok is false
// for events that are not credential intents.
func (r *reducer) credentialCall(ev Event) (c Call, invalid *autherr.Record, ok bool) {
	fail := func(op Op, rec autherr.Record) (Call, *autherr.Record, bool) {
		return Call{Op: op}, &rec, true
	}

	switch ev := ev.(type) {
	case SignInPassword:
		if !validx.Email(ev.Email) {
			return fail(OpSignInPassword, autherr.InvalidEmail)
		}
		if !validx.Password(ev.Password) {
			return fail(OpSignInPassword, autherr.InvalidPassword)
		}
		return Call{Op: OpSignInPassword, Email: ev.Email, Password: ev.Password}, nil, true

	case SignInPasswordlessEmail:
		if !validx.Email(ev.Email) {
			return fail(OpSignInPasswordlessEmail, autherr.InvalidEmail)
		}
		return Call{Op: OpSignInPasswordlessEmail, Email: ev.Email, Options: ev.Options}, nil, true

	case SignInPasswordlessSMS:
		if !validx.PhoneNumber(ev.PhoneNumber) {
			return fail(OpSignInPasswordlessSMS, autherr.InvalidPhoneNumber)
		}
		return Call{Op: OpSignInPasswordlessSMS, PhoneNumber: ev.PhoneNumber, Options: ev.Options}, nil, true

	case SignInPasswordlessSMSOTP:
		if !validx.PhoneNumber(ev.PhoneNumber) {
			return fail(OpSignInPasswordlessSMSOTP, autherr.InvalidPhoneNumber)
		}
		return Call{Op: OpSignInPasswordlessSMSOTP, PhoneNumber: ev.PhoneNumber, OTP: ev.OTP}, nil, true

	case SignInAnonymous:
		return Call{Op: OpSignInAnonymous, Options: ev.Options}, nil, true

	case SignInSecurityKey:
		if !validx.Email(ev.Email) {
			return fail(OpSignInSecurityKey, autherr.InvalidEmail)
		}
		return Call{Op: OpSignInSecurityKey, Email: ev.Email}, nil, true

	case SignInPAT:
		if !validx.PAT(ev.PAT) {
			return fail(OpSignInPAT, autherr.InvalidPAT)
		}
		return Call{Op: OpSignInPAT, PAT: ev.PAT}, nil, true

	case SignInMFATOTP:
		ticket := ev.Ticket
		if ticket == "" && r.s.Context.MFA != nil {
			ticket = r.s.Context.MFA.Ticket
		}
		switch {
		case ticket == "":
			return fail(OpSignInMFATOTP, autherr.NoMFATicket)
		case !validx.MFATicket(ticket):
			return fail(OpSignInMFATOTP, autherr.InvalidMFATicket)
		case !validx.OTP(ev.OTP):
			return fail(OpSignInMFATOTP, autherr.InvalidMFACode)
		}
		return Call{Op: OpSignInMFATOTP, Ticket: ticket, OTP: ev.OTP}, nil, true

	case SignUpEmailPassword:
		if !validx.Email(ev.Email) {
			return fail(OpSignUpEmailPassword, autherr.InvalidEmail)
		}
		if !validx.Password(ev.Password) {
			return fail(OpSignUpEmailPassword, autherr.InvalidPassword)
		}
		return Call{Op: OpSignUpEmailPassword, Email: ev.Email, Password: ev.Password, Options: ev.Options}, nil, true

	case SignUpSecurityKey:
		if !validx.Email(ev.Email) {
			return fail(OpSignUpSecurityKey, autherr.InvalidEmail)
		}
		return Call{Op: OpSignUpSecurityKey, Email: ev.Email, Options: ev.Options}, nil, true
	}

	return Call{}, nil, false
}

func (r *reducer) signOut(ev SignOut) {
	switch r.s.Auth {
	case AuthSigningOut:
		return

	case AuthSignedIn:
		token := r.s.Context.RefreshToken
		r.clearContext()
		r.s.Auth = AuthSigningOut
		r.call(&r.s.auth, Call{Op: OpSignOut, RefreshToken: token, All: ev.All})
		r.notify(NotifySignedOut)

	default:
		r.clearContext()
		r.enterSignedOut(AuthSignedOutNoErrors)
	}
}

// completeAuthentication handles the outcome of import, sign-in, sign-up and sign-out calls.
func (r *reducer) completeAuthentication(ev Completed) {
	switch {
	case ev.Op == OpImportToken:
		r.completeImport(ev)
	case ev.Op == OpSignOut:
		r.s.Auth = AuthSignedOutSuccess
		if ev.Err != nil {
			r.setError(autherr.SignOut, autherr.Classify(ev.Err, autherr.SiteSignOut))
		}
	case ev.Op.signUp():
		r.completeSignUp(ev)
	default:
		r.completeSignIn(ev)
	}
}

func (r *reducer) completeImport(ev Completed) {
	if ev.Err == nil {
		if ev.Session != nil && ev.Session.User != nil {
			r.s.importToken = ""
			r.s.fallbackToken = ""
			r.saveSession(ev.Session)
			r.enterSignedIn()
			return
		}
		r.enterSignedOut(AuthSignedOutNoErrors)
		return
	}

	rec := autherr.Classify(ev.Err, autherr.SiteImport)
	retryable := autherr.IsRetryableImport(rec)
	if retryable && r.s.Context.ImportTokenAttempts < MaxImportTokenAttempts {
		r.s.Context.ImportTokenAttempts++
		r.s.importWait = RetryIntervalSeconds
		r.s.Auth = AuthRetryImport
		return
	}

	// A refused redirect token falls back to the stored session
	if token := r.s.fallbackToken; token != "" {
		r.s.fallbackToken = ""
		r.s.Context.ImportTokenAttempts = 0
		r.importToken(token, true)
		return
	}

	// Only a stored token the backend refused is removed from storage
	if !retryable && r.s.importStored {
		r.clearContext()
	}

	r.setError(autherr.Authentication, rec)
	r.enterSignedOut(AuthSignedOutFailed)
}

func (r *reducer) completeSignIn(ev Completed) {
	if ev.Err != nil {
		rec := autherr.Classify(ev.Err, ev.Op.Site())
		r.setError(autherr.Authentication, rec)
		if rec.Error == autherr.CodeUnverifiedEmail {
			r.s.Auth = AuthSignedOutNeedsVerification
			r.s.Registration = RegNeedsEmailVerification
			return
		}
		r.s.Auth = AuthSignedOutFailed
		return
	}

	res := ev.Response
	if res == nil {
		res = &authclient.AuthResponse{}
	}

	switch {
	case res.Session != nil:
		r.saveSession(res.Session)
		r.enterSignedIn()

	case res.MFA != nil:
		r.s.Context.MFA = res.MFA
		r.s.Auth = AuthSignedOutNeedsMFA

	case ev.Op == OpSignInPasswordlessEmail:
		r.s.Auth = AuthSignedOutNoErrors
		r.s.Registration = RegNeedsEmailVerification

	case ev.Op == OpSignInPasswordlessSMS:
		r.s.Auth = AuthSignedOutNoErrors
		r.s.Registration = RegNeedsOTP

	default:
		r.s.Auth = AuthSignedOutNoErrors
	}
}

func (r *reducer) completeSignUp(ev Completed) {
	if ev.Err != nil {
		rec := autherr.Classify(ev.Err, ev.Op.Site())
		r.setError(autherr.Registration, rec)
		if rec.Error == autherr.CodeUnverifiedEmail {
			r.s.Auth = AuthSignedOutNeedsVerification
			r.s.Registration = RegNeedsEmailVerification
			return
		}
		r.s.Auth = AuthSignedOutFailed
		r.s.Registration = RegFailed
		return
	}

	if ev.Response != nil && ev.Response.Session != nil {
		r.saveSession(ev.Response.Session)
		r.enterSignedIn()
		return
	}

	r.clearContext()
	r.s.Auth = AuthSignedOutNoErrors
	r.s.Registration = RegNeedsEmailVerification
}
