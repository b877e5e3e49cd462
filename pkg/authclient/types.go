package authclient

import "encoding/json"

// ============================================================================
// Session Types
// ============================================================================

// User is the profile record the backend returns alongside a session.
type User struct {
	ID          string         `json:"id"`
	CreatedAt   string         `json:"createdAt,omitempty"`
	DisplayName string         `json:"displayName"`
	AvatarURL   string         `json:"avatarUrl,omitempty"`
	Locale      string         `json:"locale,omitempty"`
	Email       string         `json:"email,omitempty"`
	DefaultRole string         `json:"defaultRole,omitempty"`
	Roles       []string       `json:"roles,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	// IsAnonymous is set for users created through anonymous sign-in. It clears
	// when the user is deanonymized.
	IsAnonymous bool `json:"isAnonymous"`

	EmailVerified       bool   `json:"emailVerified"`
	PhoneNumber         string `json:"phoneNumber,omitempty"`
	PhoneNumberVerified bool   `json:"phoneNumberVerified"`

	// ActiveMFAType is "totp" once multi-factor authentication is enabled.
	ActiveMFAType string `json:"activeMfaType,omitempty"`
}

// Session is the token pair and user returned by sign-in and refresh calls.
type Session struct {
	// AccessToken is the JWT used as a bearer credential
	AccessToken string `json:"accessToken"`

	// AccessTokenExpiresIn is the server-declared lifetime of the access token in seconds
	AccessTokenExpiresIn int `json:"accessTokenExpiresIn"`

	// RefreshToken is the opaque long-lived token exchanged at POST /token
	RefreshToken string `json:"refreshToken"`

	User *User `json:"user"`
}

// MFAChallenge is returned instead of a session when the user must complete a second
// factor.
type MFAChallenge struct {
	Ticket string `json:"ticket"`
}

// AuthResponse is the envelope returned by every sign-in and sign-up endpoint. Either
// Session or MFA may be nil; both are nil when the backend sent a verification email or
// SMS instead of signing the user in.
type AuthResponse struct {
	Session *Session      `json:"session"`
	MFA     *MFAChallenge `json:"mfa"`
}

// ============================================================================
// Request Types
// ============================================================================

// Options are the optional registration parameters shared by sign-up, passwordless and
// deanonymize requests.
type Options struct {
	AllowedRoles []string       `json:"allowedRoles,omitempty"`
	DefaultRole  string         `json:"defaultRole,omitempty"`
	DisplayName  string         `json:"displayName,omitempty"`
	Locale       string         `json:"locale,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	RedirectTo   string         `json:"redirectTo,omitempty"`

	// Nickname names the security key on WebAuthn sign-up. It is sent only to the
	// verify endpoint.
	Nickname string `json:"-"`
}

// DeanonymizeRequest converts an anonymous user into a credentialed one.
type DeanonymizeRequest struct {
	// SignInMethod is "email-password" or "passwordless"
	SignInMethod string `json:"signInMethod"`

	// Connection is "email" or "sms" for the passwordless method
	Connection string `json:"connection,omitempty"`

	Email       string   `json:"email,omitempty"`
	Password    string   `json:"password,omitempty"`
	PhoneNumber string   `json:"phoneNumber,omitempty"`
	Options     *Options `json:"options,omitempty"`
}

// Deanonymize sign-in methods.
const (
	DeanonymizeEmailPassword = "email-password"
	DeanonymizePasswordless  = "passwordless"
)

// ============================================================================
// MFA Types
// ============================================================================

// TOTPSecret is returned by GET /mfa/totp/generate.
type TOTPSecret struct {
	// ImageURL is a data URL with a QR code of the otpauth URI
	ImageURL string `json:"imageUrl"`

	// TOTPSecret is the base32 encoded shared secret
	TOTPSecret string `json:"totpSecret"`
}

// ============================================================================
// Internal Types
// ============================================================================

// errorResponse is the error body shape of the backend.
type errorResponse struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type webauthnVerifyRequest struct {
	Email      string          `json:"email,omitempty"`
	Credential json.RawMessage `json:"credential"`
	Options    *verifyOptions  `json:"options,omitempty"`
}

type verifyOptions struct {
	RedirectTo string `json:"redirectTo,omitempty"`
	Nickname   string `json:"nickname,omitempty"`
}
