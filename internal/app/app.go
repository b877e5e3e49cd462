package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/authclient"
	"github.com/aussiebroadwan/authsession/pkg/cryptox"
	"github.com/aussiebroadwan/authsession/pkg/httpx"
	"github.com/aussiebroadwan/authsession/pkg/jwtx"
	"github.com/aussiebroadwan/authsession/pkg/session"
	"github.com/aussiebroadwan/authsession/pkg/slogx"
	"github.com/aussiebroadwan/authsession/pkg/storage"
	"github.com/aussiebroadwan/authsession/pkg/storage/drivers/redis"
	"github.com/aussiebroadwan/authsession/pkg/storage/drivers/sqlite"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application keeps a session alive against a hasura-auth backend and publishes its
// access token.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	store    storage.Storage
	closers  []func() error
	client   *authclient.Client
	verifier *jwtx.KeySetVerifier
	machine  *session.Machine
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	return NewWithLogger(cfg, slogx.New(slogx.Config{
		Service: "authsession",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	}))
}

// NewWithLogger is New with a caller supplied logger.
func NewWithLogger(cfg Config, logger *slog.Logger) (*Application, error) {
	app := &Application{cfg: cfg, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.initStorage(ctx); err != nil {
		return nil, err
	}

	app.initBackend()

	if err := app.initVerifier(ctx); err != nil {
		app.closeStorage()
		return nil, err
	}

	app.machine = session.NewMachine(app.client,
		session.Config{AutoRefresh: cfg.AutoRefresh, AutoSignIn: true},
		session.WithStorage(app.store),
		session.WithLogger(app.logger),
		session.WithIssuer(cfg.TOTPIssuer),
	)

	return app, nil
}

// Machine exposes the session driver.
func (app *Application) Machine() *session.Machine {
	return app.machine
}

// Run starts the session and blocks until ctx is done.
func (app *Application) Run(ctx context.Context) error {
	app.logger.Info("authsession starting",
		"backend", app.cfg.BackendURL,
		"storage", app.cfg.Storage,
		"version", BuildVersion,
	)

	updates, unsubscribe := app.machine.Subscribe(64)
	defer unsubscribe()

	start := session.Start{}
	if app.cfg.RedirectURL != "" {
		redirect, err := session.ParseRedirect(app.cfg.RedirectURL)
		if err != nil {
			return fmt.Errorf("failed to parse redirect url: %w", err)
		}
		start.Redirect = redirect
	}

	if err := app.machine.Start(ctx, start); err != nil {
		return app.shutdown(fmt.Errorf("failed to start session: %w", err))
	}

	// Sign in with the configured credentials when nothing could be restored
	s, err := app.machine.WaitFor(ctx, "authentication.signedIn", "authentication.signedOut")
	if err != nil {
		if ctx.Err() != nil {
			return app.shutdown(nil)
		}
		return app.shutdown(err)
	}
	if s.Auth.SignedOut() {
		if err := app.autoSignIn(); err != nil {
			return app.shutdown(err)
		}
	}

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return app.shutdown(nil)
			}
			app.handle(u)
		case <-ctx.Done():
			return app.shutdown(nil)
		}
	}
}

func (app *Application) autoSignIn() error {
	switch {
	case app.cfg.PAT != "":
		app.logger.Info("signing in with personal access token")
		return app.machine.Send(session.SignInPAT{PAT: app.cfg.PAT})
	case app.cfg.Email != "":
		app.logger.Info("signing in with email and password", "email", app.cfg.Email)
		return app.machine.Send(session.SignInPassword{Email: app.cfg.Email, Password: app.cfg.Password})
	default:
		app.logger.Warn("no session restored and no credentials configured")
		return nil
	}
}

// handle reacts to the notifications of one update.
func (app *Application) handle(u session.Update) {
	for _, n := range u.Notifications {
		switch n {
		case session.NotifySignedIn:
			user := u.Snapshot.Context.User
			app.logger.Info("signed in", "user_id", user.ID, "email", user.Email)

		case session.NotifyTokenChanged:
			app.verify(u.Snapshot.Context.AccessToken.Value)
			if err := app.writeToken(u.Snapshot.Context.AccessToken.Value); err != nil {
				app.logger.Error("failed to write token file", "error", err)
			}

		case session.NotifySignedOut:
			app.logger.Info("signed out",
				"state", u.Snapshot.Auth.String(),
				"errors", u.Snapshot.Context.Errors,
			)
			if err := app.writeToken(""); err != nil {
				app.logger.Error("failed to remove token file", "error", err)
			}
		}
	}
}

// verify checks the access token against the configured key set. Failures are logged;
// the backend stays the authority.
func (app *Application) verify(token string) {
	if app.verifier == nil || token == "" {
		return
	}

	claims, err := app.verifier.Verify(token)
	if err != nil {
		app.logger.Warn("access token failed verification", "error", err)
		return
	}
	app.logger.Debug("access token verified",
		"sub", claims.Subject,
		"role", claims.Hasura.DefaultRole,
		"anonymous", claims.Anonymous(),
		"expires_in", claims.ExpiresIn(time.Now()).Round(time.Second),
	)
}

// writeToken atomically replaces the token file. An empty token removes it.
func (app *Application) writeToken(token string) error {
	path := app.cfg.TokenFile
	if path == "" {
		return nil
	}

	if token == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".token-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(token); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// shutdown signs out when configured, stops the machine and releases storage. cause is
// returned unchanged.
func (app *Application) shutdown(cause error) error {
	app.logger.Info("shutting down authsession...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if app.cfg.SignOutOnExit && app.machine.Snapshot().Matches("authentication.signedIn") {
		if err := app.machine.Send(session.SignOut{}); err == nil {
			if _, err := app.machine.WaitFor(ctx, "authentication.signedOut"); err != nil {
				app.logger.Error("sign out did not finish", "error", err)
			}
			if err := app.writeToken(""); err != nil {
				app.logger.Error("failed to remove token file", "error", err)
			}
		}
	}

	app.machine.Stop()
	if app.verifier != nil {
		app.verifier.Close()
	}
	app.closeStorage()

	app.logger.Info("authsession stopped")
	return cause
}

// ============================================================================
// Initialisation
// ============================================================================

// initStorage opens the configured backend and wraps it for encryption when a key is set.
func (app *Application) initStorage(ctx context.Context) error {
	switch app.cfg.Storage {
	case StorageSQLite:
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.SQLiteFile)
		db, err := sqlite.NewStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply storage migrations: %w", err)
		}
		app.store = db
		app.closers = append(app.closers, db.Close)

	case StorageRedis:
		client, err := redis.Connect(ctx, app.cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		db := redis.NewStore(client, app.cfg.Redis.KeyPrefix)
		app.store = db
		app.closers = append(app.closers, db.Close)

	default:
		app.store = storage.NewMemory(nil)
	}

	if app.cfg.StorageKey != "" {
		sealer, err := cryptox.NewSealer([]byte(app.cfg.StorageKey))
		if err != nil {
			app.closeStorage()
			return fmt.Errorf("failed to create storage sealer: %w", err)
		}
		app.store = storage.NewEncrypted(app.store, sealer)
	}

	app.logger.Info("storage ready", "backend", app.cfg.Storage, "encrypted", app.cfg.StorageKey != "")
	return nil
}

// initBackend builds the backend client: logging, then rate limiting, then the network.
func (app *Application) initBackend() {
	var transport http.RoundTripper = slogx.NewTransport(nil, app.logger)
	if app.cfg.RateLimitRPS > 0 {
		transport = httpx.NewRateLimitedTransport(transport, httpx.RateLimitConfig{
			RequestsPerWindow: app.cfg.RateLimitRPS,
			Window:            time.Second,
			Burst:             app.cfg.RateLimitBurst,
		})
	}

	app.client = authclient.NewClient(app.cfg.BackendURL)
	app.client.ClientURL = app.cfg.ClientURL
	app.client.HTTPClient = &http.Client{
		Timeout:   app.cfg.HTTPTimeout,
		Transport: transport,
	}
}

func (app *Application) initVerifier(ctx context.Context) error {
	if app.cfg.JWKSURL == "" {
		return nil
	}

	// The key set keeps refreshing in the background until Close
	verifier, err := jwtx.NewRemoteVerifier(context.WithoutCancel(ctx), app.cfg.JWKSURL, jwtx.VerifyOptions{
		Leeway:     30 * time.Second,
		HTTPClient: app.client.HTTPClient,
		Logger:     app.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to load jwks: %w", err)
	}

	app.verifier = verifier
	return nil
}

func (app *Application) closeStorage() {
	for _, closeFn := range app.closers {
		if err := closeFn(); err != nil {
			app.logger.Error("error closing storage", "error", err)
		}
	}
	app.closers = nil
}
