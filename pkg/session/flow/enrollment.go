package flow

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
)

// ErrInvalidSecret is returned when the backend secret is not base32.
var ErrInvalidSecret = errors.New("flow: invalid totp secret")

// QRCodeSize is the edge length in pixels of the enrollment QR code.
const QRCodeSize = 256

// Enrollment is a TOTP secret waiting to be activated.
type Enrollment struct {
	// Secret is the base32 encoded shared secret, without padding
	Secret string

	// URL is the otpauth:// URI to load into an authenticator app
	URL string

	// QRCode is a PNG rendering of URL
	QRCode []byte
}

// NewEnrollment builds the enrollment for a secret issued by the backend.
func NewEnrollment(secret, issuer, account string) (*Enrollment, error) {
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).
		DecodeString(strings.TrimRight(strings.ToUpper(secret), "="))
	if err != nil || len(raw) == 0 {
		return nil, ErrInvalidSecret
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Secret:      raw,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate otp key: %w", err)
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, QRCodeSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}

	return &Enrollment{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRCode: png,
	}, nil
}

// Code returns the code an authenticator app would show at t.
func (e *Enrollment) Code(t time.Time) (string, error) {
	return totp.GenerateCode(e.Secret, t)
}
