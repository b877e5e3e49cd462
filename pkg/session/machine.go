package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/aussiebroadwan/authsession/pkg/authclient"
	"github.com/aussiebroadwan/authsession/pkg/idx"
	"github.com/aussiebroadwan/authsession/pkg/session/flow"
	"github.com/aussiebroadwan/authsession/pkg/slogx"
	"github.com/aussiebroadwan/authsession/pkg/storage"
)

// ErrStopped is returned by Send and WaitFor once the machine is stopped.
var ErrStopped = errors.New("session: machine stopped")

const (
	// persistTimeout bounds a single storage write.
	persistTimeout = 5 * time.Second

	// persistQueue is how many writes may wait for a slow store before the driver loop
	// blocks.
	persistQueue = 64
)

// Update is published to subscribers after an event is applied.
type Update struct {
	Snapshot      Snapshot
	Notifications []Notification
}

// Machine drives a session: it applies events one at a time, runs the backend calls and
// storage writes the reducer asks for, and ticks the refresh scheduler once per second.
type Machine struct {
	Backend Backend
	Storage storage.Storage
	Logger  *slog.Logger
	Clock   clockwork.Clock

	// Issuer labels TOTP enrollments in authenticator apps
	Issuer string

	mu   sync.RWMutex
	snap Snapshot

	events   chan Event
	persists chan Persist

	subMu sync.Mutex
	subs  map[chan Update]struct{}

	// Internal channels for lifecycle management
	ctx      context.Context
	cancel   context.CancelFunc
	calls    sync.WaitGroup
	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	writerCh chan struct{}
}

// Option configures a Machine.
type Option func(*Machine)

// WithStorage sets where the refresh token is persisted. The default keeps it in memory.
func WithStorage(s storage.Storage) Option {
	return func(m *Machine) { m.Storage = s }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.Logger = l }
}

// WithClock sets the clock driving the scheduler tick.
func WithClock(c clockwork.Clock) Option {
	return func(m *Machine) { m.Clock = c }
}

// WithIssuer sets the issuer shown for TOTP enrollments.
func WithIssuer(issuer string) Option {
	return func(m *Machine) { m.Issuer = issuer }
}

// NewMachine creates a stopped machine for backend.
func NewMachine(backend Backend, cfg Config, opts ...Option) *Machine {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Machine{
		Backend:  backend,
		Storage:  storage.NewMemory(nil),
		Logger:   slog.Default(),
		Clock:    clockwork.NewRealClock(),
		Issuer:   "authsession",
		snap:     New(cfg),
		events:   make(chan Event, 64),
		persists: make(chan Persist, persistQueue),
		subs:     make(map[chan Update]struct{}),
		ctx:      ctx,
		cancel:   cancel,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		writerCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins the driver loop and resolves the initial session with ev. When ev names
// neither a session nor a refresh token, the token is read from storage first.
func (m *Machine) Start(ctx context.Context, ev Start) error {
	if !m.started.CompareAndSwap(false, true) {
		return errors.New("session: machine already started")
	}

	if ev.Session == nil && ev.StoredRefreshToken == "" {
		token, ok, err := m.Storage.Get(ctx, storage.RefreshTokenKey)
		switch {
		case err != nil:
			m.Logger.Warn("failed to read stored refresh token", "error", err)
		case ok:
			ev.StoredRefreshToken = token
			m.logStoredExpiry(ctx)
		}
	}

	cfg := m.Snapshot().Config
	m.Logger.Info("session machine started",
		"auto_refresh", cfg.AutoRefresh,
		"auto_sign_in", cfg.AutoSignIn,
	)
	go m.write()
	go m.run()

	return m.Send(ev)
}

// logStoredExpiry reports when the access token of the stored session expired. The
// refresh token outlives it, so the import is attempted either way.
func (m *Machine) logStoredExpiry(ctx context.Context) {
	raw, ok, err := m.Storage.Get(ctx, storage.RefreshTokenExpiresAtKey)
	if err != nil || !ok {
		return
	}

	expiresAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		m.Logger.Warn("ignoring malformed stored token expiry", "value", raw, "error", err)
		return
	}

	now := m.Clock.Now()
	m.Logger.Info("stored session found",
		"access_token_expired", !now.Before(expiresAt),
		"expires_at", expiresAt,
	)
}

// Stop shuts the driver loop down and waits for in-flight backend calls to return.
// Subscriber channels are closed.
func (m *Machine) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.cancel()
		if m.started.Load() {
			<-m.doneCh

			// Queued writes still land, sign-out removals included
			close(m.persists)
			<-m.writerCh
		}
		m.calls.Wait()

		m.subMu.Lock()
		for ch := range m.subs {
			close(ch)
			delete(m.subs, ch)
		}
		m.subMu.Unlock()

		m.Logger.Info("session machine stopped")
	})
}

// Send queues ev. It is safe to call from any goroutine.
func (m *Machine) Send(ev Event) error {
	select {
	case <-m.stopCh:
		return ErrStopped
	default:
	}

	select {
	case m.events <- ev:
		return nil
	case <-m.stopCh:
		return ErrStopped
	}
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Subscribe returns a channel of updates and a function to cancel the subscription.
// Updates are dropped when the channel is full.
func (m *Machine) Subscribe(buffer int) (<-chan Update, func()) {
	ch := make(chan Update, buffer)

	m.subMu.Lock()
	m.subs[ch] = struct{}{}
	m.subMu.Unlock()

	return ch, func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if _, ok := m.subs[ch]; ok {
			delete(m.subs, ch)
			close(ch)
		}
	}
}

// WaitFor blocks until the snapshot matches one of paths.
func (m *Machine) WaitFor(ctx context.Context, paths ...string) (Snapshot, error) {
	updates, cancel := m.Subscribe(64)
	defer cancel()

	matches := func(s Snapshot) bool {
		for _, p := range paths {
			if s.Matches(p) {
				return true
			}
		}
		return false
	}

	if s := m.Snapshot(); matches(s) {
		return s, nil
	}

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return m.Snapshot(), ErrStopped
			}
			if matches(u.Snapshot) {
				return u.Snapshot, nil
			}
		case <-ctx.Done():
			return m.Snapshot(), ctx.Err()
		}
	}
}

// run is the driver loop.
func (m *Machine) run() {
	defer close(m.doneCh)

	ticker := m.Clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev := <-m.events:
			m.apply(ev)
		case <-ticker.Chan():
			m.apply(Tick{})
		case <-m.stopCh:
			return
		}
	}
}

func (m *Machine) apply(ev Event) {
	m.mu.Lock()
	prev := m.snap
	next, effects := Reduce(prev, ev, m.Clock.Now())
	m.snap = next
	m.mu.Unlock()

	changed := prev.String() != next.String()
	if changed {
		m.Logger.Debug("session transition",
			"event", eventName(ev),
			"from", prev.String(),
			"to", next.String(),
		)
	}

	var notes []Notification
	for _, e := range effects {
		switch e := e.(type) {
		case Persist:
			m.persists <- e
		case Call:
			m.execute(e)
		case Notify:
			notes = append(notes, e.Notification)
		}
	}

	if _, tick := ev.(Tick); tick && !changed && len(effects) == 0 {
		return
	}
	m.publish(Update{Snapshot: next, Notifications: notes})
}

func (m *Machine) publish(u Update) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for ch := range m.subs {
		select {
		case ch <- u:
		default:
			m.Logger.Debug("subscriber lagging, update dropped")
		}
	}
}

// write applies queued storage writes in order until the queue is closed.
func (m *Machine) write() {
	defer close(m.writerCh)

	for p := range m.persists {
		m.persist(p)
	}
}

// persist writes to storage. Failures are logged and otherwise ignored.
func (m *Machine) persist(p Persist) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(m.ctx), persistTimeout)
	defer cancel()

	if err := m.Storage.Set(ctx, p.Key, p.Value); err != nil {
		m.Logger.Warn("failed to persist session key", "key", p.Key, "error", err)
	}
}

// execute runs c in its own goroutine and feeds the outcome back as a Completed event.
func (m *Machine) execute(c Call) {
	m.calls.Add(1)
	go func() {
		defer m.calls.Done()

		ctx := slogx.WithCallID(slogx.WithContext(m.ctx, m.Logger), idx.New().String())
		logger := slogx.FromContext(ctx)
		logger.Debug("backend call", "op", c.Op.String(), "seq", c.Seq)

		done := m.invoke(ctx, c)
		if done.Err != nil {
			logger.Warn("backend call failed", "op", c.Op.String(), "error", done.Err)
		}

		if err := m.Send(done); err != nil {
			logger.Debug("completion dropped", "op", c.Op.String(), "error", err)
		}
	}()
}

func (m *Machine) invoke(ctx context.Context, c Call) Completed {
	done := Completed{Op: c.Op, Seq: c.Seq}
	b := m.Backend

	switch c.Op {
	case OpSignInPassword:
		done.Response, done.Err = b.SignInEmailPassword(ctx, c.Email, c.Password)
	case OpSignInPasswordlessEmail:
		done.Response, done.Err = b.SignInPasswordlessEmail(ctx, c.Email, c.Options)
	case OpSignInPasswordlessSMS:
		done.Response, done.Err = b.SignInPasswordlessSMS(ctx, c.PhoneNumber, c.Options)
	case OpSignInPasswordlessSMSOTP:
		done.Response, done.Err = b.SignInPasswordlessSMSOTP(ctx, c.PhoneNumber, c.OTP)
	case OpSignInAnonymous:
		done.Response, done.Err = b.SignInAnonymous(ctx, c.Options)
	case OpSignInSecurityKey:
		done.Response, done.Err = b.SignInSecurityKey(ctx, c.Email)
	case OpSignInPAT:
		done.Response, done.Err = b.SignInPAT(ctx, c.PAT)
	case OpSignInMFATOTP:
		done.Response, done.Err = b.SignInMFATOTP(ctx, c.Ticket, c.OTP)
	case OpSignUpEmailPassword:
		done.Response, done.Err = b.SignUpEmailPassword(ctx, c.Email, c.Password, c.Options)
	case OpSignUpSecurityKey:
		done.Response, done.Err = b.SignUpSecurityKey(ctx, c.Email, c.Options)
	case OpDeanonymize:
		var req authclient.DeanonymizeRequest
		if c.Deanonymize != nil {
			req = *c.Deanonymize
		}
		done.Response, done.Err = b.Deanonymize(ctx, c.AccessToken, req)
	case OpRefreshToken, OpImportToken:
		done.Session, done.Err = b.RefreshToken(ctx, c.RefreshToken)
	case OpSignOut:
		done.Err = b.SignOut(ctx, c.RefreshToken, c.All)
	case OpChangeEmail:
		done.Err = b.ChangeEmail(ctx, c.AccessToken, c.Email, c.Options)
	case OpChangePassword:
		done.Err = b.ChangePassword(ctx, c.AccessToken, c.Password, c.Ticket)
	case OpGenerateTOTP:
		done.Enrollment, done.Err = m.enroll(ctx, c)
	case OpActivateMFA:
		done.Err = b.ActivateMFA(ctx, c.AccessToken, c.Code)
	default:
		done.Err = fmt.Errorf("session: unknown operation %d", c.Op)
	}

	return done
}

func (m *Machine) enroll(ctx context.Context, c Call) (*flow.Enrollment, error) {
	secret, err := m.Backend.GenerateTOTP(ctx, c.AccessToken)
	if err != nil {
		return nil, err
	}

	account := c.Email
	if account == "" {
		account = "user"
	}
	return flow.NewEnrollment(secret.TOTPSecret, m.Issuer, account)
}

func eventName(ev Event) string {
	name := fmt.Sprintf("%T", ev)
	return strings.TrimPrefix(name, "session.")
}
