package authtest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"

	"github.com/aussiebroadwan/authsession/pkg/authclient"
	"github.com/aussiebroadwan/authsession/pkg/cryptox"
	"github.com/aussiebroadwan/authsession/pkg/httpx"
	"github.com/aussiebroadwan/authsession/pkg/jwtx"
)

// Defaults used when no Option overrides them.
const (
	DefaultIssuer    = "hasura-auth"
	DefaultAccessTTL = 15 * time.Minute
	JWKSPath         = "/.well-known/jwks.json"
)

// account is a user known to the server together with its credentials.
type account struct {
	user         authclient.User
	passwordHash string

	// totpSecret is set once MFA is active. pendingSecret holds a generated secret
	// until it is activated.
	totpSecret    string
	pendingSecret string

	credentialID string
}

// Server is an in-process hasura-auth compatible backend.
type Server struct {
	URL    string
	Issuer string

	srv      *httptest.Server
	signer   jwtx.Signer
	verifier *jwtx.KeySetVerifier

	accessTTL       time.Duration
	requireVerified bool
	signInLimit     *httpx.RateLimitConfig

	mu         sync.Mutex
	accounts   map[string]*account // by user id
	emails     map[string]string   // email -> user id
	phones     map[string]string   // phone -> user id
	refresh    map[string]string   // refresh token -> user id
	tickets    map[string]string   // mfa ticket -> user id
	pats       map[string]string   // personal access token -> user id
	smsCodes   map[string]string   // phone -> pending code
	challenges map[string]string   // webauthn challenge -> email
	faults     map[string][]Fault
	calls      map[string]int
}

// Option configures a Server.
type Option func(*Server)

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) { s.accessTTL = ttl }
}

// WithIssuer sets the iss claim of issued access tokens.
func WithIssuer(issuer string) Option {
	return func(s *Server) { s.Issuer = issuer }
}

// WithEmailVerification makes sign-up return no session and rejects sign-in of
// unverified users, like a backend with AUTH_EMAIL_SIGNIN_EMAIL_VERIFIED_REQUIRED.
func WithEmailVerification() Option {
	return func(s *Server) { s.requireVerified = true }
}

// WithRateLimit throttles the /signin routes per client IP.
func WithRateLimit(cfg httpx.RateLimitConfig) Option {
	return func(s *Server) { s.signInLimit = &cfg }
}

// New starts a server and registers its shutdown with t.Cleanup.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		Issuer:     DefaultIssuer,
		accessTTL:  DefaultAccessTTL,
		accounts:   make(map[string]*account),
		emails:     make(map[string]string),
		phones:     make(map[string]string),
		refresh:    make(map[string]string),
		tickets:    make(map[string]string),
		pats:       make(map[string]string),
		smsCodes:   make(map[string]string),
		challenges: make(map[string]string),
		faults:     make(map[string][]Fault),
		calls:      make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	key, err := cryptox.GenerateSigningKey()
	if err != nil {
		t.Fatalf("authtest: generate signing key: %v", err)
	}
	s.signer, err = jwtx.NewEdDSASigner(key, "")
	if err != nil {
		t.Fatalf("authtest: create signer: %v", err)
	}
	s.verifier, err = jwtx.NewStaticVerifier(jwtx.SetOf(s.signer), jwtx.VerifyOptions{Issuer: s.Issuer})
	if err != nil {
		t.Fatalf("authtest: create verifier: %v", err)
	}

	s.srv = httptest.NewServer(s.routes())
	s.URL = s.srv.URL
	t.Cleanup(s.Close)

	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
	s.verifier.Close()
}

// Client returns an authclient.Client pointed at the server with the fake security-key
// authenticator installed.
func (s *Server) Client() *authclient.Client {
	c := authclient.NewClient(s.URL)
	c.Authenticator = Authenticator{}
	return c
}

// JWKSURL is the location of the signing key set.
func (s *Server) JWKSURL() string {
	return s.URL + JWKSPath
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.inject)

	r.Get(JWKSPath, s.handleJWKS)

	r.Route("/signin", func(r chi.Router) {
		if s.signInLimit != nil {
			r.Use(httpx.RateLimitMiddleware(*s.signInLimit, httpx.IPKeyExtractor))
		}

		r.Post("/email-password", s.handleSignInEmailPassword)
		r.Post("/passwordless/email", s.handleSignInPasswordlessEmail)
		r.Post("/passwordless/sms", s.handleSignInPasswordlessSMS)
		r.Post("/passwordless/sms/otp", s.handleSignInPasswordlessSMSOTP)
		r.Post("/anonymous", s.handleSignInAnonymous)
		r.Post("/mfa/totp", s.handleSignInMFATOTP)
		r.Post("/pat", s.handleSignInPAT)
		r.Post("/webauthn", s.handleWebAuthnOptions)
		r.Post("/webauthn/verify", s.handleSignInWebAuthnVerify)
	})

	r.Route("/signup", func(r chi.Router) {
		r.Post("/email-password", s.handleSignUpEmailPassword)
		r.Post("/webauthn", s.handleWebAuthnOptions)
		r.Post("/webauthn/verify", s.handleSignUpWebAuthnVerify)
	})

	r.Post("/token", s.handleToken)
	r.Post("/signout", s.handleSignOut)

	r.Group(func(r chi.Router) {
		r.Use(httpx.AuthnMiddleware(s.verifier))

		r.Post("/user/deanonymize", s.handleDeanonymize)
		r.Post("/user/email/change", s.handleChangeEmail)
		r.Post("/user/password", s.handleChangePassword)
		r.Post("/user/mfa", s.handleActivateMFA)
		r.Get("/mfa/totp/generate", s.handleGenerateTOTP)
	})

	return r
}

// ============================================================================
// Seeding
// ============================================================================

// UserOptions tune a seeded user.
type UserOptions struct {
	DisplayName string
	PhoneNumber string
	Unverified  bool

	// MFA activates TOTP with a fresh secret. Use TOTPCode to sign in.
	MFA bool

	// SecurityKey registers the key of the fake Authenticator.
	SecurityKey bool
}

// AddUser registers a user with email and password and returns its profile.
func (s *Server) AddUser(t testing.TB, email, password string, opts UserOptions) authclient.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		t.Fatalf("authtest: hash password: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.newAccountLocked(email, opts.DisplayName)
	a.passwordHash = hash
	a.user.EmailVerified = !opts.Unverified
	if opts.PhoneNumber != "" {
		a.user.PhoneNumber = opts.PhoneNumber
		a.user.PhoneNumberVerified = true
		s.phones[opts.PhoneNumber] = a.user.ID
	}
	if opts.SecurityKey {
		a.credentialID = credentialID(email)
	}
	if opts.MFA {
		key, err := totp.Generate(totp.GenerateOpts{Issuer: s.Issuer, AccountName: email})
		if err != nil {
			t.Fatalf("authtest: generate totp: %v", err)
		}
		a.totpSecret = key.Secret()
		a.user.ActiveMFAType = "totp"
	}

	return a.user
}

// AddPAT issues a personal access token for an existing user.
func (s *Server) AddPAT(t testing.TB, email string) string {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.accountByEmailLocked(email)
	if a == nil {
		t.Fatalf("authtest: unknown user %q", email)
	}

	pat := uuid.NewString()
	s.pats[pat] = a.user.ID
	return pat
}

// MagicLink returns the refresh token a verification or magic link for email would
// carry. The user is created when it does not exist yet.
func (s *Server) MagicLink(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.accountByEmailLocked(email)
	if a == nil {
		a = s.newAccountLocked(email, "")
	}
	a.user.EmailVerified = true
	return s.issueRefreshLocked(a.user.ID)
}

// TOTPCode returns the current code of the active or pending TOTP secret of email.
func (s *Server) TOTPCode(t testing.TB, email string) string {
	t.Helper()

	s.mu.Lock()
	secret := ""
	if a := s.accountByEmailLocked(email); a != nil {
		secret = a.totpSecret
		if a.pendingSecret != "" {
			secret = a.pendingSecret
		}
	}
	s.mu.Unlock()

	if secret == "" {
		t.Fatalf("authtest: no totp secret for %q", email)
	}

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("authtest: generate code: %v", err)
	}
	return code
}

// SMSCode returns the one-time code last sent to phone.
func (s *Server) SMSCode(phone string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.smsCodes[phone]
}

// User returns the current profile of email.
func (s *Server) User(email string) (authclient.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.accountByEmailLocked(email)
	if a == nil {
		return authclient.User{}, false
	}
	return a.user, true
}

// RefreshTokens returns how many refresh tokens are live for email.
func (s *Server) RefreshTokens(email string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.emails[strings.ToLower(email)]
	n := 0
	for _, owner := range s.refresh {
		if owner == id {
			n++
		}
	}
	return n
}

// Calls returns how many requests reached path, failed ones included.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// ============================================================================
// Internal Helpers
// ============================================================================

func (s *Server) newAccountLocked(email, displayName string) *account {
	if displayName == "" {
		displayName = email
	}

	a := &account{user: authclient.User{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		DisplayName: displayName,
		Email:       email,
		Locale:      "en",
		DefaultRole: "user",
		Roles:       []string{"user", "me"},
	}}
	s.accounts[a.user.ID] = a
	if email != "" {
		s.emails[strings.ToLower(email)] = a.user.ID
	}
	return a
}

func (s *Server) accountByEmailLocked(email string) *account {
	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil
	}
	return s.accounts[id]
}

func (s *Server) issueRefreshLocked(userID string) string {
	token := uuid.NewString()
	s.refresh[token] = userID
	return token
}

// sessionLocked signs a new access token and refresh token for a.
func (s *Server) sessionLocked(a *account) (*authclient.Session, error) {
	claims := jwtx.NewAccessClaims(
		a.user.ID,
		a.user.DefaultRole,
		a.user.Roles,
		a.user.IsAnonymous,
		s.accessTTL,
		s.Issuer,
		time.Now(),
	)
	claims.ID = uuid.NewString()

	access, err := s.signer.Sign(claims)
	if err != nil {
		return nil, err
	}

	user := a.user
	return &authclient.Session{
		AccessToken:          access,
		AccessTokenExpiresIn: int(s.accessTTL / time.Second),
		RefreshToken:         s.issueRefreshLocked(a.user.ID),
		User:                 &user,
	}, nil
}

// signInLocked answers a successful first factor with either a session or an MFA
// ticket.
func (s *Server) signInLocked(w http.ResponseWriter, a *account) {
	if a.totpSecret != "" {
		ticket := "mfaTotp:" + uuid.NewString()
		s.tickets[ticket] = a.user.ID
		httpx.WriteJSON(w, http.StatusOK, authclient.AuthResponse{
			MFA: &authclient.MFAChallenge{Ticket: ticket},
		})
		return
	}

	session, err := s.sessionLocked(a)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, codeInternal, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authclient.AuthResponse{Session: session})
}
