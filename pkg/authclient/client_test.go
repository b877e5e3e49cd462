package authclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authsession/pkg/authclient"
	"github.com/aussiebroadwan/authsession/pkg/authtest"
	"github.com/aussiebroadwan/authsession/pkg/httpx"
	"github.com/aussiebroadwan/authsession/pkg/jwtx"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "correct-horse"
)

func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()

	var apiErr *authclient.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.Status)
	require.Equal(t, code, apiErr.Code)
}

func TestSignInEmailPassword(t *testing.T) {
	t.Parallel()

	srv := authtest.New(t)
	user := srv.AddUser(t, testEmail, testPassword, authtest.UserOptions{DisplayName: "Alice"})
	client := srv.Client()
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		res, err := client.SignInEmailPassword(ctx, testEmail, testPassword)
		require.NoError(t, err)
		require.Nil(t, res.MFA)
		require.NotNil(t, res.Session)
		require.Equal(t, int(authtest.DefaultAccessTTL.Seconds()), res.Session.AccessTokenExpiresIn)
		require.NotEmpty(t, res.Session.RefreshToken)
		require.Equal(t, user.ID, res.Session.User.ID)
		require.Equal(t, "Alice", res.Session.User.DisplayName)

		claims, err := jwtx.Inspect(res.Session.AccessToken)
		require.NoError(t, err)
		require.Equal(t, user.ID, claims.Subject)
		require.Equal(t, user.ID, claims.Hasura.UserID)
		require.False(t, claims.Anonymous())
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := client.SignInEmailPassword(ctx, testEmail, "wrong-password")
		requireAPIError(t, err, http.StatusUnauthorized, "invalid-email-password")
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := client.SignInEmailPassword(ctx, "nobody@example.com", testPassword)
		requireAPIError(t, err, http.StatusUnauthorized, "invalid-email-password")
	})
}

func TestSignInUnverified(t *testing.T) {
	t.Parallel()

	srv := authtest.New(t, authtest.WithEmailVerification())
	srv.AddUser(t, testEmail, testPassword, authtest.UserOptions{Unverified: true})

	_, err := srv.Client().SignInEmailPassword(context.Background(), testEmail, testPassword)
	requireAPIError(t, err, http.StatusUnauthorized, "unverified-user")
}

func TestSignInMFA(t *testing.T) {
	t.Parallel()

	srv := authtest.New(t)
	srv.AddUser(t, testEmail, testPassword, authtest.UserOptions{MFA: true})
	client := srv.Client()
	ctx := context.Background()

	res, err := client.SignInEmailPassword(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.Nil(t, res.Session)
	require.NotNil(t, res.MFA)
	require.True(t, strings.HasPrefix(res.MFA.Ticket, "mfaTotp:"))

	_, err = client.SignInMFATOTP(ctx, res.MFA.Ticket, "000000")
	requireAPIError(t, err, http.StatusUnauthorized, "invalid-totp")

	res, err = client.SignInMFATOTP(ctx, res.MFA.Ticket, srv.TOTPCode(t, testEmail))
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	require.Equal(t, "totp", res.Session.User.ActiveMFAType)
}

func TestSignInPasswordless(t *testing.T) {
	t.Parallel()

	srv := authtest.New(t)
	client := srv.Client()
	ctx := context.Background()

	t.Run("email", func(t *testing.T) {
		res, err := client.SignInPasswordlessEmail(ctx, "bob@example.com", nil)
		require.NoError(t, err)
		require.Nil(t, res.Session)

		_, ok := srv.User("bob@example.com")
		require.True(t, ok)
	})

	t.Run("sms", func(t *testing.T) {
		const phone = "+61412345678"

		res, err := client.SignInPasswordlessSMS(ctx, phone, nil)
		require.NoError(t, err)
		require.Nil(t, res.Session)

		code := srv.SMSCode(phone)
		require.Len(t, code, 6)

		res, err = client.SignInPasswordlessSMSOTP(ctx, phone, code)
		require.NoError(t, err)
		require.Equal(t, phone, res.Session.User.PhoneNumber)
		require.True(t, res.Session.User.PhoneNumberVerified)

		_, err = client.SignInPasswordlessSMSOTP(ctx, phone, code)
		requireAPIError(t, err, http.StatusUnauthorized, "invalid-otp")
	})
}

func TestSignInAnonymousAndDeanonymize(t *testing.T) {
	t.Parallel()

	srv := authtest.New(t)
	client := srv.Client()
	ctx := context.Background()

	res, err := client.SignInAnonymous(ctx, nil)
	require.NoError(t, err)
	require.True(t, res.Session.User.IsAnonymous)

	claims, err := jwtx.Inspect(res.Session.AccessToken)
	require.NoError(t, err)
	require.True(t, claims.Anonymous())

	res, err = client.Deanonymize(ctx, res.Session.AccessToken, authclient.DeanonymizeRequest{
		SignInMethod: authclient.DeanonymizeEmailPassword,
		Email:        testEmail,
		Password:     testPassword,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	require.False(t, res.Session.User.IsAnonymous)
	require.Equal(t, testEmail, res.Session.User.Email)

	_, err = client.Deanonymize(ctx, res.Session.AccessToken, authclient.DeanonymizeRequest{
		SignInMethod: authclient.DeanonymizeEmailPassword,
		Email:        "other@example.com",
		Password:     testPassword,
	})
	requireAPIError(t, err, http.StatusBadRequest, "user-not-anonymous")

	_, err = client.SignInEmailPassword(ctx, testEmail, testPassword)
	require.NoError(t, err)
}

func TestSignInPAT(t *testing.T) {
	t.Parallel()

	srv := authtest.New(t)
	srv.AddUser(t, testEmail, testPassword, authtest.UserOptions{})
	pat := srv.AddPAT(t, testEmail)
	client := srv.Client()

	res, err := client.SignInPAT(context.Background(), pat)
	require.NoError(t, err)
	require.Equal(t, testEmail, res.Session.User.Email)

	_, err = client.SignInPAT(context.Background(), "00000000-0000-0000-0000-000000000000")
	requireAPIError(t, err, http.StatusUnauthorized, "invalid-pat")
}

func TestSecurityKey(t *testing.T) {
	t.Parallel()

	srv := authtest.New(t)
	client := srv.Client()
	ctx := context.Background()

	res, err := client.SignUpSecurityKey(ctx, testEmail, &authclient.Options{Nickname: "yubikey"})
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	require.Equal(t, "yubikey", res.Session.User.DisplayName)

	res, err = client.SignInSecurityKey(ctx, testEmail)
	require.NoError(t, err)
	require.Equal(t, testEmail, res.Session.User.Email)

	_, err = client.SignUpSecurityKey(ctx, testEmail, nil)
	requireAPIError(t, err, http.StatusConflict, "email-already-in-use")

	t.Run("no authenticator", func(t *testing.T) {
		c := authclient.NewClient(srv.URL)
		_, err := c.SignInSecurityKey(ctx, testEmail)
		require.ErrorIs(t, err, authclient.ErrNoAuthenticator)
	})

	t.Run("ceremony failure", func(t *testing.T) {
		c := authclient.NewClient(srv.URL)
		c.Authenticator = authtest.Authenticator{Err: errors.New("user cancelled")}

		_, err := c.SignInSecurityKey(ctx, testEmail)
		var ceremony *authclient.CeremonyError
		require.ErrorAs(t, err, &ceremony)
		require.EqualError(t, ceremony.Err, "user cancelled")
	})
}

func TestSignUpEmailPassword(t *testing.T) {
	t.Parallel()

	t.Run("signed in immediately", func(t *testing.T) {
		t.Parallel()

		srv := authtest.New(t)
		res, err := srv.Client().SignUpEmailPassword(context.Background(), testEmail, testPassword, &authclient.Options{
			DisplayName: "Alice",
			Locale:      "fr",
		})
		require.NoError(t, err)
		require.Equal(t, "Alice", res.Session.User.DisplayName)
		require.Equal(t, "fr", res.Session.User.Locale)
	})

	t.Run("verification required", func(t *testing.T) {
		t.Parallel()

		srv := authtest.New(t, authtest.WithEmailVerification())
		client := srv.Client()

		res, err := client.SignUpEmailPassword(context.Background(), testEmail, testPassword, nil)
		require.NoError(t, err)
		require.Nil(t, res.Session)
		require.Nil(t, res.MFA)

		_, err = client.SignUpEmailPassword(context.Background(), testEmail, testPassword, nil)
		requireAPIError(t, err, http.StatusConflict, "email-already-in-use")
	})
}

func TestRefreshToken(t *testing.T) {
	t.Parallel()

	srv := authtest.New(t)
	srv.AddUser(t, testEmail, testPassword, authtest.UserOptions{})
	client := srv.Client()
	ctx := context.Background()

	res, err := client.SignInEmailPassword(ctx, testEmail, testPassword)
	require.NoError(t, err)
	first := res.Session.RefreshToken

	session, err := client.RefreshToken(ctx, first)
	require.NoError(t, err)
	require.NotEqual(t, first, session.RefreshToken)
	require.Equal(t, testEmail, session.User.Email)

	// Tokens minted within the same second still differ
	require.NotEqual(t, res.Session.AccessToken, session.AccessToken)
	claims, err := jwtx.Inspect(session.AccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, claims.ID)

	_, err = client.RefreshToken(ctx, first)
	requireAPIError(t, err, http.StatusUnauthorized, "invalid-refresh-token")
}

func TestSignOut(t *testing.T) {
	t.Parallel()

	srv := authtest.New(t)
	srv.AddUser(t, testEmail, testPassword, authtest.UserOptions{})
	client := srv.Client()
	ctx := context.Background()

	var tokens []string
	for range 3 {
		res, err := client.SignInEmailPassword(ctx, testEmail, testPassword)
		require.NoError(t, err)
		tokens = append(tokens, res.Session.RefreshToken)
	}
	require.Equal(t, 3, srv.RefreshTokens(testEmail))

	require.NoError(t, client.SignOut(ctx, tokens[0], false))
	require.Equal(t, 2, srv.RefreshTokens(testEmail))

	require.NoError(t, client.SignOut(ctx, tokens[1], true))
	require.Zero(t, srv.RefreshTokens(testEmail))

	err := client.SignOut(ctx, tokens[2], false)
	requireAPIError(t, err, http.StatusUnauthorized, "invalid-refresh-token")
}

func TestUserEndpoints(t *testing.T) {
	t.Parallel()

	srv := authtest.New(t)
	srv.AddUser(t, testEmail, testPassword, authtest.UserOptions{})
	srv.AddUser(t, "taken@example.com", testPassword, authtest.UserOptions{})
	client := srv.Client()
	ctx := context.Background()

	res, err := client.SignInEmailPassword(ctx, testEmail, testPassword)
	require.NoError(t, err)
	access := res.Session.AccessToken

	t.Run("change email", func(t *testing.T) {
		require.NoError(t, client.ChangeEmail(ctx, access, "new@example.com", nil))

		err := client.ChangeEmail(ctx, access, "taken@example.com", nil)
		requireAPIError(t, err, http.StatusConflict, "email-already-in-use")
	})

	t.Run("change password", func(t *testing.T) {
		require.NoError(t, client.ChangePassword(ctx, access, "new-password", ""))

		_, err := client.SignInEmailPassword(ctx, testEmail, "new-password")
		require.NoError(t, err)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		err := client.ChangePassword(ctx, "", "new-password", "")
		requireAPIError(t, err, http.StatusUnauthorized, "unauthenticated-user")

		err = client.ChangePassword(ctx, "not-a-jwt", "new-password", "")
		requireAPIError(t, err, http.StatusUnauthorized, "invalid-token")
	})

	t.Run("mfa", func(t *testing.T) {
		secret, err := client.GenerateTOTP(ctx, access)
		require.NoError(t, err)
		require.NotEmpty(t, secret.TOTPSecret)
		require.True(t, strings.HasPrefix(secret.ImageURL, "data:image/png;base64,"))

		err = client.ActivateMFA(ctx, access, "000000")
		requireAPIError(t, err, http.StatusUnauthorized, "invalid-totp")

		require.NoError(t, client.ActivateMFA(ctx, access, srv.TOTPCode(t, testEmail)))

		user, _ := srv.User(testEmail)
		require.Equal(t, "totp", user.ActiveMFAType)

		_, err = client.GenerateTOTP(ctx, access)
		requireAPIError(t, err, http.StatusBadRequest, "totp-already-active")
	})
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	srv := authtest.New(t)
	srv.Fail("/token", authtest.NetworkDown)

	_, err := srv.Client().RefreshToken(context.Background(), "00000000-0000-0000-0000-000000000000")

	var transport *authclient.TransportError
	require.ErrorAs(t, err, &transport)
	require.Equal(t, "/token", transport.Path)
	require.Equal(t, 1, srv.Calls("/token"))
}

func TestInjectedStatus(t *testing.T) {
	t.Parallel()

	srv := authtest.New(t)
	srv.FailN("/signin/anonymous", 2, authtest.Status(http.StatusServiceUnavailable))
	client := srv.Client()

	for range 2 {
		_, err := client.SignInAnonymous(context.Background(), nil)
		requireAPIError(t, err, http.StatusServiceUnavailable, "internal-error")
	}

	_, err := client.SignInAnonymous(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 3, srv.Calls("/signin/anonymous"))
}

func TestRateLimited(t *testing.T) {
	t.Parallel()

	srv := authtest.New(t, authtest.WithRateLimit(httpx.RateLimitConfig{
		RequestsPerWindow: 1,
		Window:            time.Hour,
		Burst:             1,
	}))
	client := srv.Client()

	_, err := client.SignInAnonymous(context.Background(), nil)
	require.NoError(t, err)

	_, err = client.SignInAnonymous(context.Background(), nil)
	requireAPIError(t, err, http.StatusTooManyRequests, "too-many-requests")

	// Only sign-in is throttled
	_, err = client.RefreshToken(context.Background(), "7e57d004-2b97-4e7a-b45f-5387367791cd")
	requireAPIError(t, err, http.StatusUnauthorized, "invalid-refresh-token")
}

func TestErrorBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>upstream down</html>"))
	}))
	t.Cleanup(srv.Close)

	_, err := authclient.NewClient(srv.URL).RefreshToken(context.Background(), "token")

	var apiErr *authclient.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.Status)
	require.Empty(t, apiErr.Code)
	require.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestRedirectRewrite(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		bodies []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client := authclient.NewClient(srv.URL + "/")
	client.ClientURL = "https://app.example.com/"
	ctx := context.Background()

	tests := []struct {
		name     string
		opts     *authclient.Options
		expected string
	}{
		{"default", nil, "https://app.example.com"},
		{"relative", &authclient.Options{RedirectTo: "/verified"}, "https://app.example.com/verified"},
		{"absolute", &authclient.Options{RedirectTo: "https://other.example.com/x"}, "https://other.example.com/x"},
	}

	for i, tt := range tests {
		_, err := client.SignInPasswordlessEmail(ctx, testEmail, tt.opts)
		require.NoError(t, err, tt.name)

		mu.Lock()
		options, ok := bodies[i]["options"].(map[string]any)
		mu.Unlock()
		require.True(t, ok, tt.name)
		require.Equal(t, tt.expected, options["redirectTo"], tt.name)
	}

	opts := &authclient.Options{RedirectTo: "/verified"}
	_, err := client.SignInPasswordlessEmail(ctx, testEmail, opts)
	require.NoError(t, err)
	require.Equal(t, "/verified", opts.RedirectTo)
}
