package authtest

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// KeyOptions are the WebAuthn options the server hands out. Only the fields the fake
// ceremony needs are modelled.
type KeyOptions struct {
	Challenge string  `json:"challenge"`
	RPID      string  `json:"rpId"`
	User      KeyUser `json:"user"`
}

type KeyUser struct {
	Name string `json:"name"`
}

// Credential is what the fake authenticator returns from a ceremony.
type Credential struct {
	ID        string `json:"id"`
	Challenge string `json:"challenge"`
}

// Authenticator is an authclient.Authenticator that answers every ceremony with a
// credential the Server accepts. Set Err to make ceremonies fail.
type Authenticator struct {
	Err error
}

// Authenticate implements authclient.Authenticator.
func (a Authenticator) Authenticate(_ context.Context, options json.RawMessage) (json.RawMessage, error) {
	return a.respond(options)
}

// Register implements authclient.Authenticator.
func (a Authenticator) Register(_ context.Context, options json.RawMessage) (json.RawMessage, error) {
	return a.respond(options)
}

func (a Authenticator) respond(options json.RawMessage) (json.RawMessage, error) {
	if a.Err != nil {
		return nil, a.Err
	}

	var opts KeyOptions
	if err := json.Unmarshal(options, &opts); err != nil {
		return nil, err
	}
	return json.Marshal(Credential{ID: credentialID(opts.User.Name), Challenge: opts.Challenge})
}

// credentialID is the stable key id of the fake authenticator for a user.
func credentialID(email string) string {
	return "key:" + email
}

func newChallenge() string {
	return uuid.NewString()
}
