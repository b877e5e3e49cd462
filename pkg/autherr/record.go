// Package autherr defines the error taxonomy exposed by the session machine and the
// classifier that maps backend and transport failures onto it.
package autherr

import "fmt"

// Status codes that are not HTTP statuses.
const (
	// StatusNetwork is used when no response was received.
	StatusNetwork = 0

	// StatusValidation marks errors synthesized locally before any network call.
	StatusValidation = 10
)

// Record is a classified error. Callers compare on the literal code/message/status.
type Record struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Err wraps the record so it can travel through error returns.
func (r Record) Err() error { return &Error{Record: r} }

// String implements fmt.Stringer.
func (r Record) String() string {
	return fmt.Sprintf("%s (%d): %s", r.Error, r.Status, r.Message)
}

// Error is a Record carried as an error value. Classify passes it through untouched.
type Error struct {
	Record Record
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "autherr: " + e.Record.String()
}

// Category is the slot an error is reported in.
type Category string

const (
	Authentication Category = "authentication"
	Registration   Category = "registration"
	NewEmail       Category = "newEmail"
	NewPassword    Category = "newPassword"
	RefreshTimer   Category = "refreshTimer"
	SignOut        Category = "signOut"
	MFA            Category = "mfa"
)

// Errors holds at most one record per category. Values are never mutated in place,
// With and Without return copies.
type Errors map[Category]Record

// Get returns the record in category c.
func (e Errors) Get(c Category) (Record, bool) {
	r, ok := e[c]
	return r, ok
}

// With returns a copy of e with r stored in category c.
func (e Errors) With(c Category, r Record) Errors {
	out := make(Errors, len(e)+1)
	for k, v := range e {
		out[k] = v
	}
	out[c] = r
	return out
}

// Without returns a copy of e with category c cleared. It returns e itself when the
// slot is already empty.
func (e Errors) Without(c Category) Errors {
	if _, ok := e[c]; !ok {
		return e
	}
	out := make(Errors, len(e))
	for k, v := range e {
		if k != c {
			out[k] = v
		}
	}
	return out
}
