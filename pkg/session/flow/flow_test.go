package flow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authsession/pkg/autherr"
	"github.com/aussiebroadwan/authsession/pkg/session/flow"
)

func TestChangeEmail(t *testing.T) {
	t.Parallel()

	t.Run("invalid email short-circuits", func(t *testing.T) {
		t.Parallel()

		s, req, n := flow.Reduce(flow.KindChangeEmail, flow.State{}, flow.RequestEmailChange{Email: "not-an-email"})
		require.Nil(t, req)
		require.Equal(t, flow.ChangeEmailInvalid, n)
		require.Equal(t, "idle.invalid", s.String())
		require.Equal(t, autherr.InvalidEmail, *s.Error)
		require.True(t, n.Failing())
	})

	t.Run("success needs verification", func(t *testing.T) {
		t.Parallel()

		s, req, n := flow.Reduce(flow.KindChangeEmail, flow.State{}, flow.RequestEmailChange{Email: "new@example.com"})
		require.NotNil(t, req)
		require.Equal(t, flow.ActionChangeEmail, req.Action)
		require.Equal(t, "new@example.com", req.Email)
		require.Equal(t, flow.ChangeEmailLoading, n)
		require.Equal(t, "requesting", s.String())

		s, req, n = flow.Reduce(flow.KindChangeEmail, s, flow.Result{})
		require.Nil(t, req)
		require.Equal(t, flow.ChangeEmailSuccess, n)
		require.Equal(t, "idle.needsVerification", s.String())
		require.Nil(t, s.Error)
	})

	t.Run("backend failure", func(t *testing.T) {
		t.Parallel()

		s, _, _ := flow.Reduce(flow.KindChangeEmail, flow.State{}, flow.RequestEmailChange{Email: "new@example.com"})
		rec := autherr.Network
		s, _, n := flow.Reduce(flow.KindChangeEmail, s, flow.Result{Err: &rec})
		require.Equal(t, flow.ChangeEmailError, n)
		require.Equal(t, "idle.failed", s.String())
		require.Equal(t, autherr.Network, *s.Error)
	})

	t.Run("requests while requesting are ignored", func(t *testing.T) {
		t.Parallel()

		s, _, _ := flow.Reduce(flow.KindChangeEmail, flow.State{}, flow.RequestEmailChange{Email: "a@example.com"})
		next, req, n := flow.Reduce(flow.KindChangeEmail, s, flow.RequestEmailChange{Email: "b@example.com"})
		require.Nil(t, req)
		require.Empty(t, n)
		require.Equal(t, s, next)
	})
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	s, req, n := flow.Reduce(flow.KindChangePassword, flow.State{}, flow.RequestPasswordChange{Password: "abc"})
	require.Nil(t, req)
	require.Equal(t, flow.ChangePasswordInvalid, n)
	require.Equal(t, autherr.InvalidPassword, *s.Error)

	s, req, _ = flow.Reduce(flow.KindChangePassword, s, flow.RequestPasswordChange{Password: "correct-horse", Ticket: "passwordReset:x"})
	require.NotNil(t, req)
	require.Equal(t, "passwordReset:x", req.Ticket)
	require.Nil(t, s.Error)

	s, _, n = flow.Reduce(flow.KindChangePassword, s, flow.Result{})
	require.Equal(t, flow.ChangePasswordSuccess, n)
	require.Equal(t, "idle.success", s.String())
}

func TestMFA(t *testing.T) {
	t.Parallel()

	s, req, n := flow.Reduce(flow.KindMFA, flow.State{}, flow.RequestTOTP{})
	require.Equal(t, flow.ActionGenerateTOTP, req.Action)
	require.Equal(t, flow.MFALoading, n)

	s, _, n = flow.Reduce(flow.KindMFA, s, flow.Result{})
	require.Equal(t, flow.MFAGenerated, n)
	require.Equal(t, "idle.needsVerification", s.String())

	_, req, n = flow.Reduce(flow.KindMFA, s, flow.RequestActivation{Code: "12ab"})
	require.Nil(t, req)
	require.Equal(t, flow.MFAInvalid, n)

	s, req, _ = flow.Reduce(flow.KindMFA, s, flow.RequestActivation{Code: "123456"})
	require.Equal(t, flow.ActionActivateMFA, req.Action)
	require.Equal(t, "123456", req.Code)

	s, _, n = flow.Reduce(flow.KindMFA, s, flow.Result{})
	require.Equal(t, flow.MFASuccess, n)
	require.Equal(t, "idle.success", s.String())
}

func TestReduceIgnoresOtherKinds(t *testing.T) {
	t.Parallel()

	s, req, n := flow.Reduce(flow.KindMFA, flow.State{}, flow.RequestEmailChange{Email: "a@example.com"})
	require.Nil(t, req)
	require.Empty(t, n)
	require.Equal(t, flow.State{}, s)

	s, _, _ = flow.Reduce(flow.KindMFA, flow.State{}, flow.Result{})
	require.Equal(t, flow.State{}, s)
}

func TestFailAndReset(t *testing.T) {
	t.Parallel()

	s, n := flow.Fail(flow.KindChangePassword, autherr.UnauthenticatedUser)
	require.Equal(t, flow.ChangePasswordError, n)
	require.Equal(t, autherr.UnauthenticatedUser, *s.Error)
	require.Equal(t, autherr.NewPassword, flow.KindChangePassword.Category())

	s, _, _ = flow.Reduce(flow.KindChangePassword, s, flow.Reset{})
	require.Equal(t, "idle.noErrors", s.String())
}

func TestEnrollment(t *testing.T) {
	t.Parallel()

	t.Run("builds url and qr code", func(t *testing.T) {
		t.Parallel()

		e, err := flow.NewEnrollment("JBSWY3DPEHPK3PXP", "authsession", "jane@example.com")
		require.NoError(t, err)
		require.Equal(t, "JBSWY3DPEHPK3PXP", e.Secret)
		require.Contains(t, e.URL, "otpauth://totp/")
		require.Contains(t, e.URL, "secret=JBSWY3DPEHPK3PXP")
		require.Equal(t, []byte("\x89PNG"), e.QRCode[:4])

		code, err := e.Code(time.Now())
		require.NoError(t, err)
		require.Len(t, code, 6)
	})

	t.Run("rejects bad secret", func(t *testing.T) {
		t.Parallel()

		_, err := flow.NewEnrollment("not base32!", "authsession", "jane@example.com")
		require.ErrorIs(t, err, flow.ErrInvalidSecret)
	})
}
