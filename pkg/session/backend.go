package session

import (
	"context"

	"github.com/aussiebroadwan/authsession/pkg/authclient"
)

// Backend is the identity service a Machine talks to. *authclient.Client implements it.
type Backend interface {
	SignInEmailPassword(ctx context.Context, email, password string) (*authclient.AuthResponse, error)
	SignInPasswordlessEmail(ctx context.Context, email string, opts *authclient.Options) (*authclient.AuthResponse, error)
	SignInPasswordlessSMS(ctx context.Context, phoneNumber string, opts *authclient.Options) (*authclient.AuthResponse, error)
	SignInPasswordlessSMSOTP(ctx context.Context, phoneNumber, otp string) (*authclient.AuthResponse, error)
	SignInAnonymous(ctx context.Context, opts *authclient.Options) (*authclient.AuthResponse, error)
	SignInSecurityKey(ctx context.Context, email string) (*authclient.AuthResponse, error)
	SignInPAT(ctx context.Context, pat string) (*authclient.AuthResponse, error)
	SignInMFATOTP(ctx context.Context, ticket, otp string) (*authclient.AuthResponse, error)

	SignUpEmailPassword(ctx context.Context, email, password string, opts *authclient.Options) (*authclient.AuthResponse, error)
	SignUpSecurityKey(ctx context.Context, email string, opts *authclient.Options) (*authclient.AuthResponse, error)
	Deanonymize(ctx context.Context, accessToken string, req authclient.DeanonymizeRequest) (*authclient.AuthResponse, error)

	RefreshToken(ctx context.Context, refreshToken string) (*authclient.Session, error)
	SignOut(ctx context.Context, refreshToken string, all bool) error

	ChangeEmail(ctx context.Context, accessToken, newEmail string, opts *authclient.Options) error
	ChangePassword(ctx context.Context, accessToken, newPassword, ticket string) error
	GenerateTOTP(ctx context.Context, accessToken string) (*authclient.TOTPSecret, error)
	ActivateMFA(ctx context.Context, accessToken, code string) error
}

var _ Backend = (*authclient.Client)(nil)
