package authtest

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"

	"github.com/aussiebroadwan/authsession/pkg/authclient"
	"github.com/aussiebroadwan/authsession/pkg/cryptox"
	"github.com/aussiebroadwan/authsession/pkg/httpx"
	"github.com/aussiebroadwan/authsession/pkg/jwtx"
)

// Error codes and messages as hasura-auth sends them.
const (
	codeInternal             = "internal-error"
	codeInvalidRequest       = "invalid-request"
	codeInvalidEmailPassword = "invalid-email-password"
	codeUnverifiedUser       = "unverified-user"
	codeEmailInUse           = "email-already-in-use"
	codeInvalidRefreshToken  = "invalid-refresh-token"
	codeInvalidTicket        = "invalid-ticket"
	codeInvalidTOTP          = "invalid-totp"
	codeInvalidOTP           = "invalid-otp"
	codeInvalidPAT           = "invalid-pat"
	codeInvalidToken         = "invalid-token"
	codeUserNotAnonymous     = "user-not-anonymous"
	codePasswordTooShort     = "password-too-short"
	codeTOTPAlreadyActive    = "totp-already-active"
	codeNoTOTPSecret         = "no-totp-secret"
	codeInvalidKey           = "invalid-webauthn-security-key"

	msgUnverified = "Email is not verified"
)

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	httpx.WriteError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
	return false
}

func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, jwtx.SetOf(s.signer))
}

// ============================================================================
// Sign In
// ============================================================================

func (s *Server) handleSignInEmailPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 1. Check the credentials
	a := s.accountByEmailLocked(req.Email)
	if a == nil || a.passwordHash == "" || cryptox.VerifyPassword(req.Password, a.passwordHash) != nil {
		httpx.WriteError(w, http.StatusUnauthorized, codeInvalidEmailPassword, "Incorrect email or password")
		return
	}

	// 2. Unverified users cannot sign in when verification is required
	if s.requireVerified && !a.user.EmailVerified {
		httpx.WriteError(w, http.StatusUnauthorized, codeUnverifiedUser, msgUnverified)
		return
	}

	// 3. Session or MFA ticket
	s.signInLocked(w, a)
}

func (s *Server) handleSignInPasswordlessEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email   string              `json:"email"`
		Options *authclient.Options `json:"options"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accountByEmailLocked(req.Email) == nil {
		s.applyOptionsLocked(s.newAccountLocked(req.Email, ""), req.Options)
	}
	httpx.WriteOK(w)
}

func (s *Server) handleSignInPasswordlessSMS(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string              `json:"phoneNumber"`
		Options     *authclient.Options `json:"options"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.phones[req.PhoneNumber]; !ok {
		a := s.newAccountLocked("", req.PhoneNumber)
		a.user.PhoneNumber = req.PhoneNumber
		s.applyOptionsLocked(a, req.Options)
		s.phones[req.PhoneNumber] = a.user.ID
	}
	s.smsCodes[req.PhoneNumber] = fmt.Sprintf("%06d", rand.IntN(1_000_000))
	httpx.WriteOK(w)
}

func (s *Server) handleSignInPasswordlessSMSOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
		OTP         string `json:"otp"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.smsCodes[req.PhoneNumber]
	if !ok || code != req.OTP {
		httpx.WriteError(w, http.StatusUnauthorized, codeInvalidOTP, "Invalid or expired OTP")
		return
	}
	delete(s.smsCodes, req.PhoneNumber)

	a := s.accounts[s.phones[req.PhoneNumber]]
	a.user.PhoneNumberVerified = true
	s.signInLocked(w, a)
}

func (s *Server) handleSignInAnonymous(w http.ResponseWriter, r *http.Request) {
	var opts authclient.Options
	if !decode(w, r, &opts) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.newAccountLocked("", "Anonymous")
	a.user.IsAnonymous = true
	a.user.DefaultRole = "anonymous"
	a.user.Roles = []string{"anonymous"}
	s.applyOptionsLocked(a, &opts)
	s.signInLocked(w, a)
}

func (s *Server) handleSignInMFATOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ticket string `json:"ticket"`
		OTP    string `json:"otp"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.tickets[req.Ticket]
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, codeInvalidTicket, "Invalid or expired MFA ticket")
		return
	}

	a := s.accounts[id]
	if !totp.Validate(req.OTP, a.totpSecret) {
		httpx.WriteError(w, http.StatusUnauthorized, codeInvalidTOTP, "Invalid TOTP code")
		return
	}
	delete(s.tickets, req.Ticket)

	session, err := s.sessionLocked(a)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, codeInternal, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authclient.AuthResponse{Session: session})
}

func (s *Server) handleSignInPAT(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PersonalAccessToken string `json:"personalAccessToken"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.pats[req.PersonalAccessToken]
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, codeInvalidPAT, "Invalid or expired personal access token")
		return
	}

	session, err := s.sessionLocked(s.accounts[id])
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, codeInternal, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authclient.AuthResponse{Session: session})
}

// ============================================================================
// Security Keys
// ============================================================================

// handleWebAuthnOptions serves both the request options of a sign-in and the creation
// options of a sign-up.
func (s *Server) handleWebAuthnOptions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.accountByEmailLocked(req.Email)
	signUp := r.URL.Path == "/signup/webauthn"
	switch {
	case signUp && a != nil:
		httpx.WriteError(w, http.StatusConflict, codeEmailInUse, "Email already in use")
		return
	case !signUp && (a == nil || a.credentialID == ""):
		httpx.WriteError(w, http.StatusBadRequest, codeInvalidKey, "No security key registered for this user")
		return
	}

	challenge := newChallenge()
	s.challenges[challenge] = req.Email
	httpx.WriteJSON(w, http.StatusOK, KeyOptions{Challenge: challenge, RPID: "localhost", User: KeyUser{Name: req.Email}})
}

func (s *Server) handleSignInWebAuthnVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string     `json:"email"`
		Credential Credential `json:"credential"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.consumeChallengeLocked(req.Credential)
	a := s.accountByEmailLocked(email)
	if !ok || email != req.Email || a == nil || a.credentialID != req.Credential.ID {
		httpx.WriteError(w, http.StatusUnauthorized, codeInvalidKey, "Invalid security key")
		return
	}

	s.signInLocked(w, a)
}

func (s *Server) handleSignUpWebAuthnVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Credential Credential `json:"credential"`
		Options    struct {
			Nickname string `json:"nickname"`
		} `json:"options"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.consumeChallengeLocked(req.Credential)
	if !ok || req.Credential.ID != credentialID(email) {
		httpx.WriteError(w, http.StatusUnauthorized, codeInvalidKey, "Invalid security key")
		return
	}

	a := s.newAccountLocked(email, req.Options.Nickname)
	a.credentialID = req.Credential.ID
	s.finishSignUpLocked(w, a)
}

func (s *Server) consumeChallengeLocked(c Credential) (string, bool) {
	email, ok := s.challenges[c.Challenge]
	delete(s.challenges, c.Challenge)
	return email, ok
}

// ============================================================================
// Sign Up
// ============================================================================

func (s *Server) handleSignUpEmailPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string              `json:"email"`
		Password string              `json:"password"`
		Options  *authclient.Options `json:"options"`
	}
	if !decode(w, r, &req) {
		return
	}

	hash, err := cryptox.HashPassword(req.Password)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, codeInternal, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accountByEmailLocked(req.Email) != nil {
		httpx.WriteError(w, http.StatusConflict, codeEmailInUse, "Email already in use")
		return
	}

	a := s.newAccountLocked(req.Email, "")
	a.passwordHash = hash
	s.applyOptionsLocked(a, req.Options)
	s.finishSignUpLocked(w, a)
}

// finishSignUpLocked signs a new user in, or leaves it unverified and answers without a
// session when verification is required.
func (s *Server) finishSignUpLocked(w http.ResponseWriter, a *account) {
	if s.requireVerified {
		httpx.WriteJSON(w, http.StatusOK, authclient.AuthResponse{})
		return
	}

	a.user.EmailVerified = true
	s.signInLocked(w, a)
}

func (s *Server) applyOptionsLocked(a *account, opts *authclient.Options) {
	if opts == nil {
		return
	}
	if opts.DisplayName != "" {
		a.user.DisplayName = opts.DisplayName
	}
	if opts.Locale != "" {
		a.user.Locale = opts.Locale
	}
	if opts.DefaultRole != "" {
		a.user.DefaultRole = opts.DefaultRole
	}
	if len(opts.AllowedRoles) > 0 {
		a.user.Roles = opts.AllowedRoles
	}
	if opts.Metadata != nil {
		a.user.Metadata = opts.Metadata
	}
}

// ============================================================================
// Tokens
// ============================================================================

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.refresh[req.RefreshToken]
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, codeInvalidRefreshToken, "Invalid or expired refresh token")
		return
	}

	// Refresh tokens rotate on every use
	delete(s.refresh, req.RefreshToken)

	session, err := s.sessionLocked(s.accounts[id])
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, codeInternal, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, session)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
		All          bool   `json:"all"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.refresh[req.RefreshToken]
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, codeInvalidRefreshToken, "Invalid or expired refresh token")
		return
	}

	delete(s.refresh, req.RefreshToken)
	if req.All {
		for token, owner := range s.refresh {
			if owner == id {
				delete(s.refresh, token)
			}
		}
	}
	httpx.WriteOK(w)
}

// ============================================================================
// User
// ============================================================================

// callerLocked resolves the user behind the verified access token.
func (s *Server) callerLocked(w http.ResponseWriter, r *http.Request) (*account, bool) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, codeInvalidToken, "Invalid or expired access token")
		return nil, false
	}

	a, ok := s.accounts[claims.Subject]
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, codeInvalidToken, "User no longer exists")
		return nil, false
	}
	return a, true
}

func (s *Server) handleDeanonymize(w http.ResponseWriter, r *http.Request) {
	var req authclient.DeanonymizeRequest
	if !decode(w, r, &req) {
		return
	}

	var hash string
	if req.SignInMethod == authclient.DeanonymizeEmailPassword {
		var err error
		if hash, err = cryptox.HashPassword(req.Password); err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, codeInternal, err.Error())
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.callerLocked(w, r)
	if !ok {
		return
	}

	// 1. Only anonymous users can be converted
	if !a.user.IsAnonymous {
		httpx.WriteError(w, http.StatusBadRequest, codeUserNotAnonymous, "Logged in user is not anonymous")
		return
	}
	if req.Email != "" && s.accountByEmailLocked(req.Email) != nil {
		httpx.WriteError(w, http.StatusConflict, codeEmailInUse, "Email already in use")
		return
	}

	// 2. Promote the user
	a.user.IsAnonymous = false
	a.user.DefaultRole = "user"
	a.user.Roles = []string{"user", "me"}
	s.applyOptionsLocked(a, req.Options)
	if req.Email != "" {
		a.user.Email = req.Email
		s.emails[strings.ToLower(req.Email)] = a.user.ID
	}
	if req.PhoneNumber != "" {
		a.user.PhoneNumber = req.PhoneNumber
		s.phones[req.PhoneNumber] = a.user.ID
	}

	// 3. Passwordless users complete through the link or code they were sent
	switch {
	case req.SignInMethod == authclient.DeanonymizePasswordless && req.Connection == "sms":
		s.smsCodes[req.PhoneNumber] = fmt.Sprintf("%06d", rand.IntN(1_000_000))
		httpx.WriteJSON(w, http.StatusOK, authclient.AuthResponse{})
	case req.SignInMethod == authclient.DeanonymizePasswordless:
		httpx.WriteJSON(w, http.StatusOK, authclient.AuthResponse{})
	default:
		a.passwordHash = hash
		s.finishSignUpLocked(w, a)
	}
}

func (s *Server) handleChangeEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewEmail string `json:"newEmail"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.callerLocked(w, r); !ok {
		return
	}
	if s.accountByEmailLocked(req.NewEmail) != nil {
		httpx.WriteError(w, http.StatusConflict, codeEmailInUse, "Email already in use")
		return
	}

	// The address changes once the confirmation link is followed
	httpx.WriteOK(w)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewPassword string `json:"newPassword"`
	}
	if !decode(w, r, &req) {
		return
	}

	if len(req.NewPassword) < 4 {
		httpx.WriteError(w, http.StatusBadRequest, codePasswordTooShort, "Password is too short")
		return
	}

	hash, err := cryptox.HashPassword(req.NewPassword)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, codeInternal, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.callerLocked(w, r)
	if !ok {
		return
	}
	a.passwordHash = hash
	httpx.WriteOK(w)
}

func (s *Server) handleGenerateTOTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.callerLocked(w, r)
	if !ok {
		return
	}
	if a.totpSecret != "" {
		httpx.WriteError(w, http.StatusBadRequest, codeTOTPAlreadyActive, "TOTP MFA is already active")
		return
	}

	accountName := a.user.Email
	if accountName == "" {
		accountName = a.user.ID
	}

	key, err := totp.Generate(totp.GenerateOpts{Issuer: s.Issuer, AccountName: accountName})
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, codeInternal, err.Error())
		return
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, codeInternal, err.Error())
		return
	}

	a.pendingSecret = key.Secret()
	httpx.WriteJSON(w, http.StatusOK, authclient.TOTPSecret{
		ImageURL:   "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		TOTPSecret: key.Secret(),
	})
}

func (s *Server) handleActivateMFA(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code          string `json:"code"`
		ActiveMFAType string `json:"activeMfaType"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.callerLocked(w, r)
	if !ok {
		return
	}

	// An empty type disables MFA with a code from the active secret
	if req.ActiveMFAType == "" {
		if a.totpSecret == "" || !totp.Validate(req.Code, a.totpSecret) {
			httpx.WriteError(w, http.StatusUnauthorized, codeInvalidTOTP, "Invalid TOTP code")
			return
		}
		a.totpSecret = ""
		a.user.ActiveMFAType = ""
		httpx.WriteOK(w)
		return
	}

	if a.pendingSecret == "" {
		httpx.WriteError(w, http.StatusBadRequest, codeNoTOTPSecret, "No TOTP secret has been generated")
		return
	}
	if !totp.Validate(req.Code, a.pendingSecret) {
		httpx.WriteError(w, http.StatusUnauthorized, codeInvalidTOTP, "Invalid TOTP code")
		return
	}

	a.totpSecret, a.pendingSecret = a.pendingSecret, ""
	a.user.ActiveMFAType = req.ActiveMFAType
	httpx.WriteOK(w)
}
