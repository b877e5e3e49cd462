package session_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authsession/pkg/session"
)

func TestParseRedirect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		url      string
		expected session.Redirect
	}{
		{
			name: "query",
			url:  "https://app.example.com/?refreshToken=" + testRefresh + "&type=signinPasswordless",
			expected: session.Redirect{
				RefreshToken: testRefresh,
				Type:         session.RedirectSignInPasswordless,
			},
		},
		{
			name: "fragment",
			url:  "https://app.example.com/#refreshToken=" + testRefresh + "&type=emailVerify",
			expected: session.Redirect{
				RefreshToken: testRefresh,
				Type:         session.RedirectEmailVerify,
			},
		},
		{
			name: "error",
			url:  "https://app.example.com/?error=invalid-ticket&errorDescription=Ticket+expired",
			expected: session.Redirect{
				Error:            "invalid-ticket",
				ErrorDescription: "Ticket expired",
			},
		},
		{
			name:     "nothing",
			url:      "https://app.example.com/profile",
			expected: session.Redirect{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, err := session.ParseRedirect(tt.url)
			require.NoError(t, err)
			require.Equal(t, tt.expected, *r)
		})
	}

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		r, err := session.ParseRedirect("https://app.example.com/")
		require.NoError(t, err)
		require.True(t, r.Empty())

		var nilRedirect *session.Redirect
		require.True(t, nilRedirect.Empty())
	})

	t.Run("invalid url", func(t *testing.T) {
		t.Parallel()

		_, err := session.ParseRedirect("://bad")
		require.Error(t, err)
	})
}
