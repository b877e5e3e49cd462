package session

import (
	"github.com/aussiebroadwan/authsession/pkg/authclient"
	"github.com/aussiebroadwan/authsession/pkg/autherr"
	"github.com/aussiebroadwan/authsession/pkg/validx"
)

// registration is region B. Apart from resets it only acts while an anonymous user is
// signed in, turning credential intents into a deanonymization.
func (r *reducer) registration(ev Event) {
	if _, ok := ev.(SignOut); ok {
		r.s.Registration = RegIncomplete
		r.s.reg = pending{}
		return
	}

	if r.s.Auth != AuthSignedIn || r.s.Registration == RegDeanonymizing {
		return
	}
	if u := r.s.Context.User; u == nil || !u.IsAnonymous {
		return
	}

	req, invalid, ok := deanonymizeRequest(ev)
	if !ok {
		return
	}
	if invalid != nil {
		r.setError(autherr.Registration, *invalid)
		r.s.Registration = RegFailed
		return
	}

	r.clearError(autherr.Registration)
	r.s.Registration = RegDeanonymizing
	r.call(&r.s.reg, Call{
		Op:          OpDeanonymize,
		AccessToken: r.s.Context.AccessToken.Value,
		Deanonymize: req,
	})
}

func deanonymizeRequest(ev Event) (*authclient.DeanonymizeRequest, *autherr.Record, bool) {
	switch ev := ev.(type) {
	case SignUpEmailPassword:
		if !validx.Email(ev.Email) {
			return nil, &autherr.InvalidEmail, true
		}
		if !validx.Password(ev.Password) {
			return nil, &autherr.InvalidPassword, true
		}
		return &authclient.DeanonymizeRequest{
			SignInMethod: authclient.DeanonymizeEmailPassword,
			Email:        ev.Email,
			Password:     ev.Password,
			Options:      ev.Options,
		}, nil, true

	case SignInPasswordlessEmail:
		if !validx.Email(ev.Email) {
			return nil, &autherr.InvalidEmail, true
		}
		return &authclient.DeanonymizeRequest{
			SignInMethod: authclient.DeanonymizePasswordless,
			Connection:   "email",
			Email:        ev.Email,
			Options:      ev.Options,
		}, nil, true

	case SignInPasswordlessSMS:
		if !validx.PhoneNumber(ev.PhoneNumber) {
			return nil, &autherr.InvalidPhoneNumber, true
		}
		return &authclient.DeanonymizeRequest{
			SignInMethod: authclient.DeanonymizePasswordless,
			Connection:   "sms",
			PhoneNumber:  ev.PhoneNumber,
			Options:      ev.Options,
		}, nil, true
	}

	return nil, nil, false
}

func (r *reducer) completeDeanonymize(ev Completed) {
	if ev.Err != nil {
		r.setError(autherr.Registration, autherr.Classify(ev.Err, autherr.SiteDeanonymize))
		r.s.Registration = RegFailed
		return
	}

	if ev.Response == nil || ev.Response.Session == nil {
		r.clearContext()
		r.enterSignedOut(AuthSignedOutNoErrors)
		r.s.Registration = RegNeedsEmailVerification
		return
	}

	sess := *ev.Response.Session
	if sess.User == nil {
		sess.User = r.s.Context.User
	}
	if sess.User != nil {
		u := *sess.User
		u.IsAnonymous = false
		sess.User = &u
	}

	r.saveSession(&sess)
	r.clearError(autherr.Registration)
	r.s.Registration = RegComplete
}
