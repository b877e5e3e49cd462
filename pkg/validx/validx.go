// Package validx holds the local input checks run before any backend call.
package validx

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

// MinPasswordLength is the exclusive lower bound on password length.
const MinPasswordLength = 3

// MFATicketPrefix prefixes every TOTP ticket issued by the backend.
const MFATicketPrefix = "mfaTotp:"

var otpPattern = regexp.MustCompile(`^[0-9]{6}$`)

// Email reports whether email is a well-formed address.
func Email(email string) bool {
	return validation.Validate(email,
		validation.Required,
		validation.Length(3, 320),
		is.Email,
	) == nil
}

// Password reports whether password is long enough. Empty passwords are always invalid.
func Password(password string) bool {
	return password != "" && len(password) > MinPasswordLength
}

// PhoneNumber reports whether phone is a valid number in international format.
func PhoneNumber(phone string) bool {
	if validation.Validate(phone, validation.Required) != nil {
		return false
	}

	num, err := phonenumbers.Parse(phone, "")
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

// UUID reports whether s is a canonical UUID.
func UUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

// MFATicket reports whether ticket has the mfaTotp:<uuid> shape.
func MFATicket(ticket string) bool {
	rest, ok := strings.CutPrefix(ticket, MFATicketPrefix)
	return ok && UUID(rest)
}

// OTP reports whether code is a six digit one-time code.
func OTP(code string) bool {
	return otpPattern.MatchString(code)
}

// PAT reports whether pat looks like a personal access token.
func PAT(pat string) bool {
	return UUID(pat)
}
