package session

import (
	"github.com/aussiebroadwan/authsession/pkg/autherr"
	"github.com/aussiebroadwan/authsession/pkg/session/flow"
)

// subflows forwards sub-flow intents to the flow machines hosted by signedIn.
func (r *reducer) subflows(ev Event) {
	var (
		k  flow.Kind
		fe flow.Event
	)

	switch ev := ev.(type) {
	case ChangeEmail:
		k, fe = flow.KindChangeEmail, flow.RequestEmailChange{Email: ev.Email, Options: ev.Options}
	case ChangePassword:
		k, fe = flow.KindChangePassword, flow.RequestPasswordChange{Password: ev.Password, Ticket: ev.Ticket}
	case GenerateMFA:
		k, fe = flow.KindMFA, flow.RequestTOTP{}
	case ActivateMFA:
		k, fe = flow.KindMFA, flow.RequestActivation{Code: ev.Code}
	default:
		return
	}

	if r.s.Auth != AuthSignedIn {
		st, n := flow.Fail(k, autherr.UnauthenticatedUser)
		r.s.Flows[k] = st
		r.foldFlow(k, st, n)
		return
	}

	st, req, n := flow.Reduce(k, r.s.Flows[k], fe)
	r.s.Flows[k] = st
	r.foldFlow(k, st, n)

	if req == nil {
		return
	}

	c := Call{
		Op:          flowOp(req.Action),
		AccessToken: r.s.Context.AccessToken.Value,
		Email:       req.Email,
		Password:    req.Password,
		Ticket:      req.Ticket,
		Code:        req.Code,
		Options:     req.Options,
	}
	if c.Op == OpGenerateTOTP && r.s.Context.User != nil {
		c.Email = r.s.Context.User.Email
	}
	r.call(&r.s.flows[k], c)
}

func (r *reducer) completeFlow(k flow.Kind, ev Completed) {
	var res flow.Result
	if ev.Err != nil {
		rec := autherr.Classify(ev.Err, ev.Op.Site())
		res.Err = &rec
	}

	st, _, n := flow.Reduce(k, r.s.Flows[k], res)
	r.s.Flows[k] = st
	r.foldFlow(k, st, n)

	switch {
	case ev.Err != nil:
	case ev.Op == OpGenerateTOTP:
		r.s.Context.Enrollment = ev.Enrollment
	case ev.Op == OpActivateMFA:
		r.s.Context.Enrollment = nil
		if u := r.s.Context.User; u != nil {
			cp := *u
			cp.ActiveMFAType = "totp"
			r.s.Context.User = &cp
		}
	}
}

// foldFlow mirrors a flow notification into the flow's error slot and reports it.
func (r *reducer) foldFlow(k flow.Kind, st flow.State, n flow.Notification) {
	if n == "" {
		return
	}
	if n.Failing() && st.Error != nil {
		r.setError(k.Category(), *st.Error)
	} else {
		r.clearError(k.Category())
	}
	r.notify(Notification(n))
}
