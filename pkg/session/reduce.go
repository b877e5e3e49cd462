package session

import (
	"time"

	"github.com/aussiebroadwan/authsession/pkg/authclient"
	"github.com/aussiebroadwan/authsession/pkg/autherr"
	"github.com/aussiebroadwan/authsession/pkg/session/flow"
	"github.com/aussiebroadwan/authsession/pkg/storage"
)

// Reduce applies ev to s and returns the next snapshot with the effects to carry out, in
// order. It reads no clock; now is only used to stamp token expiry.
//
// Intents are offered to the authentication, registration and refresh regions, then to
// the sub-flows, in that order. Completions go straight to the region that issued the
// call and are dropped when that region has moved on.
func Reduce(s Snapshot, ev Event, now time.Time) (Snapshot, []Effect) {
	r := &reducer{s: s, now: now, wasSignedIn: s.Auth == AuthSignedIn}

	switch ev := ev.(type) {
	case Completed:
		r.complete(ev)
	case Tick:
		r.tick()
	default:
		r.authentication(ev)
		r.registration(ev)
		r.scheduler(ev)
		r.subflows(ev)
	}

	r.settle()
	return r.s, r.effects
}

type reducer struct {
	s           Snapshot
	now         time.Time
	effects     []Effect
	wasSignedIn bool
}

func (r *reducer) emit(e Effect) {
	r.effects = append(r.effects, e)
}

func (r *reducer) notify(n Notification) {
	r.emit(Notify{Notification: n})
}

func (r *reducer) persist(key string, value *string) {
	r.emit(Persist{Key: key, Value: value})
}

// call emits c fenced by a fresh sequence number recorded in slot.
func (r *reducer) call(slot *pending, c Call) {
	r.s.seq++
	c.Seq = r.s.seq
	*slot = pending{op: c.Op, seq: c.Seq}
	r.emit(c)
}

func (r *reducer) setError(c autherr.Category, rec autherr.Record) {
	r.s.Context.Errors = r.s.Context.Errors.With(c, rec)
}

func (r *reducer) clearError(c autherr.Category) {
	r.s.Context.Errors = r.s.Context.Errors.Without(c)
}

func (r *reducer) resetErrors() {
	r.s.Context.Errors = nil
	r.s.Context.ImportTokenAttempts = 0
}

func (r *reducer) resetTimer() {
	r.s.Context.RefreshTimer = RefreshTimer{}
}

// saveSession stores the tokens and user of sess and restarts the refresh timer.
func (r *reducer) saveSession(sess *authclient.Session) {
	c := &r.s.Context
	expiresIn := ExpiresInSeconds(sess.AccessTokenExpiresIn)
	expiresAt := r.now.Add(time.Duration(expiresIn) * time.Second).UTC()

	c.User = sess.User
	c.AccessToken = AccessToken{
		Value:            sess.AccessToken,
		ExpiresAt:        expiresAt,
		ExpiresInSeconds: expiresIn,
	}
	c.RefreshToken = sess.RefreshToken
	c.MFA = nil
	r.resetTimer()

	if sess.RefreshToken != "" {
		r.persist(storage.RefreshTokenKey, storage.Value(sess.RefreshToken))
	}
	r.persist(storage.RefreshTokenExpiresAtKey, storage.Value(expiresAt.Format(time.RFC3339)))
	r.notify(NotifyTokenChanged)

	if r.s.Refresh != RefreshDisabled {
		r.s.Refresh = RefreshPending
		r.s.refresh = pending{}
	}
}

// clearContext drops every credential and error and removes them from storage.
func (r *reducer) clearContext() {
	r.s.Context = Context{}
	r.persist(storage.RefreshTokenKey, nil)
	r.persist(storage.RefreshTokenExpiresAtKey, nil)
}

func (r *reducer) enterSignedIn() {
	if r.s.Auth == AuthSignedIn {
		return
	}
	r.s.Auth = AuthSignedIn
	r.s.auth = pending{}
	r.resetErrors()
	r.resetFlows()

	if r.s.Registration != RegDeanonymizing {
		r.s.Registration = RegComplete
		if r.s.Context.User != nil && r.s.Context.User.IsAnonymous {
			r.s.Registration = RegIncomplete
		}
	}
	r.notify(NotifySignedIn)
}

// enterSignedOut moves region A to the signedOut substate to. Leaving a resolved or
// pending session reports SIGNED_OUT.
func (r *reducer) enterSignedOut(to AuthState) {
	from := r.s.Auth
	r.s.Auth = to
	r.s.auth = pending{}
	r.s.importToken = ""
	r.s.importStored = false
	r.s.fallbackToken = ""

	switch from {
	case AuthStarting, AuthImporting, AuthRetryImport, AuthSignedIn:
		r.notify(NotifySignedOut)
	}
}

// complete routes a completion to the region that issued the call.
func (r *reducer) complete(ev Completed) {
	if ev.Seq == 0 {
		return
	}
	want := pending{op: ev.Op, seq: ev.Seq}

	if k, ok := ev.Op.flowKind(); ok {
		if r.s.flows[k] != want {
			return
		}
		r.s.flows[k] = pending{}
		r.completeFlow(k, ev)
		return
	}

	switch ev.Op {
	case OpRefreshToken:
		if r.s.refresh != want || r.s.Refresh != RefreshRefreshing {
			return
		}
		r.s.refresh = pending{}
		r.completeRefresh(ev)

	case OpDeanonymize:
		if r.s.reg != want || r.s.Registration != RegDeanonymizing {
			return
		}
		r.s.reg = pending{}
		r.completeDeanonymize(ev)

	default:
		if r.s.auth != want || !r.s.Auth.Busy() {
			return
		}
		r.s.auth = pending{}
		r.completeAuthentication(ev)
	}
}

func (r *reducer) tick() {
	if r.s.Auth == AuthRetryImport {
		r.s.importWait--
		if r.s.importWait <= 0 {
			r.importToken(r.s.importToken, r.s.importStored)
		}
	}

	if r.s.Refresh == RefreshPending {
		r.s.Context.RefreshTimer.Elapsed++
	}
}

// settle applies the always-transitions until the snapshot is stable.
func (r *reducer) settle() {
	if r.s.Auth.SignedOut() && r.s.Context.Authenticated() {
		r.enterSignedIn()
	}

	r.settleScheduler()

	if r.wasSignedIn && r.s.Auth != AuthSignedIn {
		r.resetFlows()
	}
}

func (r *reducer) resetFlows() {
	for _, k := range flow.Kinds {
		r.s.Flows[k], _, _ = flow.Reduce(k, r.s.Flows[k], flow.Reset{})
		r.s.flows[k] = pending{}
	}
	r.s.Context.Enrollment = nil
}
