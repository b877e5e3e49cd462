package session

import (
	"time"

	"github.com/aussiebroadwan/authsession/pkg/authclient"
	"github.com/aussiebroadwan/authsession/pkg/autherr"
	"github.com/aussiebroadwan/authsession/pkg/session/flow"
)

// AccessToken is the current bearer token. Value is empty when nobody is signed in.
type AccessToken struct {
	Value string

	// ExpiresAt is when the scheduler refreshes the token, not the JWT exp claim
	ExpiresAt time.Time

	// ExpiresInSeconds is the refresh delay counted by the scheduler
	ExpiresInSeconds int
}

// RefreshTimer tracks the scheduler between ticks.
type RefreshTimer struct {
	// Elapsed counts ticks since the last refresh or attempt
	Elapsed int

	// Attempts counts consecutive failed refreshes
	Attempts int

	LastError *autherr.Record
}

// Context is the data shared by every region.
type Context struct {
	User         *authclient.User
	AccessToken  AccessToken
	RefreshToken string

	// MFA holds the ticket of a pending second-factor challenge
	MFA *authclient.MFAChallenge

	Errors              autherr.Errors
	RefreshTimer        RefreshTimer
	ImportTokenAttempts int

	// Enrollment is the TOTP secret generated by the MFA flow, until it is activated
	Enrollment *flow.Enrollment
}

// Authenticated reports whether the context holds a user and an access token.
func (c Context) Authenticated() bool {
	return c.User != nil && c.AccessToken.Value != ""
}
