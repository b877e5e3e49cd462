package session

import (
	"strings"

	"github.com/aussiebroadwan/authsession/pkg/session/flow"
)

// Config holds the behaviour switches of a session.
type Config struct {
	// AutoRefresh keeps the access token fresh in the background
	AutoRefresh bool

	// AutoSignIn signs in with a refresh token or error carried by a redirect URL
	AutoSignIn bool
}

// DefaultConfig enables both switches.
func DefaultConfig() Config {
	return Config{AutoRefresh: true, AutoSignIn: true}
}

// pending fences a backend call. Completions are accepted only when op and seq match.
type pending struct {
	op  Op
	seq uint64
}

// Snapshot is the full state of a session. It is a value: Reduce returns a new one and
// never mutates the input's shared parts.
type Snapshot struct {
	Context      Context
	Auth         AuthState
	Registration RegState
	Refresh      RefreshState
	Flows        [3]flow.State
	Config       Config

	seq         uint64
	auth        pending
	reg         pending
	refresh     pending
	flows       [3]pending
	importToken string
	importWait  int

	// importStored is set while importToken came from storage. fallbackToken is the
	// stored token to import when a redirect token is refused.
	importStored  bool
	fallbackToken string
}

// New returns the initial snapshot for cfg.
func New(cfg Config) Snapshot {
	s := Snapshot{Config: cfg}
	if !cfg.AutoRefresh {
		s.Refresh = RefreshDisabled
	}
	return s
}

// Flow returns the state of the sub-flow k.
func (s Snapshot) Flow(k flow.Kind) flow.State {
	return s.Flows[k]
}

// States lists the dotted path of every active state.
func (s Snapshot) States() []string {
	out := []string{s.Auth.String(), s.Registration.String(), s.Refresh.String()}
	for _, k := range flow.Kinds {
		out = append(out, k.String()+"."+s.Flows[k].String())
	}
	return out
}

// Matches reports whether the snapshot is in the state named by path. A parent path such
// as "authentication.signedOut" matches every substate.
func (s Snapshot) Matches(path string) bool {
	for _, st := range s.States() {
		if st == path || strings.HasPrefix(st, path+".") {
			return true
		}
	}
	return false
}

// String joins the active state paths.
func (s Snapshot) String() string {
	return strings.Join(s.States(), " ")
}

// NextRefreshIn returns the number of ticks until the scheduler refreshes the token, or
// -1 when no refresh is scheduled.
func (s Snapshot) NextRefreshIn() int {
	if s.Refresh != RefreshPending {
		return -1
	}
	return max(s.Context.AccessToken.ExpiresInSeconds-s.Context.RefreshTimer.Elapsed, 0)
}

// Loading reports whether a startup import or a sign-in call is in flight.
func (s Snapshot) Loading() bool {
	return s.Auth.Loading() || s.Auth.Busy() || s.Registration == RegDeanonymizing
}
