package session

import (
	"github.com/aussiebroadwan/authsession/pkg/autherr"
	"github.com/aussiebroadwan/authsession/pkg/storage"
)

// scheduler is region C. Session saves restart it directly; the only intent it handles
// is sign-out.
func (r *reducer) scheduler(ev Event) {
	if _, ok := ev.(SignOut); !ok {
		return
	}
	if r.s.Refresh == RefreshDisabled {
		return
	}
	r.s.Refresh = RefreshIdle
	r.s.refresh = pending{}
	r.resetTimer()
}

// settleScheduler applies the scheduler's always-transitions.
func (r *reducer) settleScheduler() {
	live := r.s.Auth == AuthSignedIn && r.s.Context.RefreshToken != ""

	switch r.s.Refresh {
	case RefreshIdle, RefreshFailed:
		if live {
			r.s.Refresh = RefreshPending
			r.resetTimer()
		}
	case RefreshPending, RefreshRefreshing:
		if !live {
			r.s.Refresh = RefreshIdle
			r.s.refresh = pending{}
			r.resetTimer()
		}
	}

	if r.s.Refresh != RefreshPending {
		return
	}

	c := r.s.Context
	if c.RefreshTimer.Elapsed >= c.AccessToken.ExpiresInSeconds || c.User == nil {
		r.s.Refresh = RefreshRefreshing
		r.call(&r.s.refresh, Call{Op: OpRefreshToken, RefreshToken: c.RefreshToken})
	}
}

func (r *reducer) completeRefresh(ev Completed) {
	if ev.Err == nil && ev.Session != nil {
		r.saveSession(ev.Session)
		r.clearError(autherr.RefreshTimer)
		return
	}

	rec := autherr.Classify(ev.Err, autherr.SiteRefresh)
	if ev.Err == nil {
		rec = autherr.InvalidRefreshToken
	}

	t := &r.s.Context.RefreshTimer
	t.Attempts = min(t.Attempts+1, MaxRetryAttempts)
	if autherr.IsNetwork(rec) && t.Attempts < MaxRetryAttempts {
		t.Elapsed = 0
		t.LastError = &rec
		r.s.Context.AccessToken.ExpiresInSeconds = RetryIntervalSeconds
		r.s.Refresh = RefreshPending
		return
	}

	c := &r.s.Context
	c.User = nil
	c.AccessToken = AccessToken{}
	c.RefreshToken = ""
	c.RefreshTimer = RefreshTimer{Attempts: t.Attempts, LastError: &rec}
	r.persist(storage.RefreshTokenKey, nil)
	r.persist(storage.RefreshTokenExpiresAtKey, nil)
	r.setError(autherr.RefreshTimer, rec)
	r.s.Refresh = RefreshFailed

	if r.s.Auth == AuthSignedIn {
		r.enterSignedOut(AuthSignedOutFailed)
	}
}
