package session_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authsession/pkg/authclient"
	"github.com/aussiebroadwan/authsession/pkg/session"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	testEmail    = "jane@example.com"
	testPassword = "validpass123"
	testRefresh  = "2f4c1a3e-8f1b-4a5e-9d0c-6b7a8e9f0a1b"
	testTicket   = "mfaTotp:7d3c9b1e-2a4f-4e6d-8b0a-1c2d3e4f5a6b"
)

var errUnreachable = &authclient.TransportError{Path: "/signin/email-password", Err: errors.New("connection refused")}

func newSession(accessToken string, expiresIn int, anonymous bool) *authclient.Session {
	return &authclient.Session{
		AccessToken:          accessToken,
		AccessTokenExpiresIn: expiresIn,
		RefreshToken:         testRefresh,
		User: &authclient.User{
			ID:          "0f8e7d6c-5b4a-4392-8170-6f5e4d3c2b1a",
			Email:       testEmail,
			DisplayName: "Jane",
			IsAnonymous: anonymous,
		},
	}
}

func apply(s session.Snapshot, ev session.Event) (session.Snapshot, []session.Effect) {
	return session.Reduce(s, ev, now)
}

func ticks(s session.Snapshot, n int) (session.Snapshot, []session.Effect) {
	var all []session.Effect
	for range n {
		var effects []session.Effect
		s, effects = apply(s, session.Tick{})
		all = append(all, effects...)
	}
	return s, all
}

func callsOf(effects []session.Effect) []session.Call {
	var out []session.Call
	for _, e := range effects {
		if c, ok := e.(session.Call); ok {
			out = append(out, c)
		}
	}
	return out
}

func onlyCall(t *testing.T, effects []session.Effect) session.Call {
	t.Helper()
	calls := callsOf(effects)
	require.Len(t, calls, 1)
	return calls[0]
}

func notesOf(effects []session.Effect) []session.Notification {
	var out []session.Notification
	for _, e := range effects {
		if n, ok := e.(session.Notify); ok {
			out = append(out, n.Notification)
		}
	}
	return out
}

// persistsOf returns the last write per key.
func persistsOf(effects []session.Effect) map[string]*string {
	out := make(map[string]*string)
	for _, e := range effects {
		if p, ok := e.(session.Persist); ok {
			out[p.Key] = p.Value
		}
	}
	return out
}

func done(c session.Call) session.Completed {
	return session.Completed{Op: c.Op, Seq: c.Seq}
}

func signedOut(t *testing.T) session.Snapshot {
	t.Helper()
	s, _ := apply(session.New(session.DefaultConfig()), session.Start{})
	require.True(t, s.Matches("authentication.signedOut.noErrors"))
	return s
}

func signedIn(t *testing.T, expiresIn int, anonymous bool) session.Snapshot {
	t.Helper()
	s, _ := apply(session.New(session.DefaultConfig()), session.Start{
		Session: newSession("access-1", expiresIn, anonymous),
	})
	require.True(t, s.Matches("authentication.signedIn"))
	return s
}
