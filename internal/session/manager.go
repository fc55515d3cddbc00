package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/apiclient"
	"github.com/angelmondragon/packfinderz-storefront/internal/sessionstore"
	pkgauth "github.com/angelmondragon/packfinderz-storefront/pkg/auth"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/metrics"
	"github.com/angelmondragon/packfinderz-storefront/pkg/types"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

// API is the slice of the remote client the session manager depends on.
type API interface {
	Login(ctx context.Context, creds apiclient.Credentials) (*apiclient.LoginResult, error)
	Logout(ctx context.Context, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*apiclient.LoginResult, error)
	Me(ctx context.Context) (*types.Identity, error)
}

// ManagerParams groups dependencies for the session manager.
type ManagerParams struct {
	API         API
	Store       sessionstore.Store
	Logger      *logger.Logger
	Metrics     *metrics.SyncMetrics
	LogoutGrace time.Duration
}

// Manager owns the client session: login/logout, optimistic bootstrap from
// durable storage, and the single-flight token refresh protocol.
type Manager struct {
	api     API
	store   sessionstore.Store
	logg    *logger.Logger
	metrics *metrics.SyncMetrics
	grace   time.Duration

	sf singleflight.Group

	mu           sync.Mutex
	state        State
	identity     *types.Identity
	accessToken  string
	refreshToken string
	generation   uint64
	lastLogout   time.Time
	subscribers  []func(Transition)
}

// NewManager builds a session manager with the required dependencies.
func NewManager(params ManagerParams) (*Manager, error) {
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "api client is required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session store is required")
	}
	if params.LogoutGrace < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logout grace must not be negative")
	}
	return &Manager{
		api:     params.API,
		store:   params.Store,
		logg:    params.Logger,
		metrics: params.Metrics,
		grace:   params.LogoutGrace,
		state:   StateAnonymous,
	}, nil
}

// Subscribe registers a transition observer. Observers run synchronously, in
// registration order, inside the call that caused the transition.
func (m *Manager) Subscribe(fn func(Transition)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Bootstrap restores the persisted session synchronously so the application
// never shows a logged-out flash for a returning user. The restored identity
// is optimistic; Verify downgrades it if the server disagrees.
func (m *Manager) Bootstrap(ctx context.Context) error {
	record, err := m.store.Load(ctx)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restoring persisted session")
	}

	if expiry, peekErr := pkgauth.PeekExpiry(record.AccessToken); peekErr == nil && !expiry.IsZero() && expiry.Before(time.Now()) {
		m.log().Debug(ctx, "restored session has expired access token, first call will refresh")
	}

	m.mu.Lock()
	from := m.state
	identity := record.Identity
	m.identity = &identity
	m.accessToken = record.AccessToken
	m.refreshToken = record.RefreshToken
	m.state = StateAuthenticated
	m.generation++
	tr := m.transitionLocked(from, StateAuthenticated)
	m.mu.Unlock()

	m.publish(tr)
	return nil
}

// Login authenticates against the server and establishes a new session.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	m.mu.Lock()
	switch m.state {
	case StateAuthenticating, StateRefreshing:
		m.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeValidation, "authentication already in progress")
	case StateAuthenticated:
		m.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeValidation, "already authenticated, log out first")
	}
	from := m.state
	m.state = StateAuthenticating
	tr := m.transitionLocked(from, StateAuthenticating)
	m.mu.Unlock()
	m.publish(tr)

	result, err := m.api.Login(ctx, apiclient.Credentials{Email: email, Password: password})

	m.mu.Lock()
	if err != nil {
		m.state = StateAnonymous
		tr := m.transitionLocked(StateAuthenticating, StateAnonymous)
		m.mu.Unlock()
		m.publish(tr)
		return err
	}

	identity := result.Identity
	m.identity = &identity
	m.accessToken = result.AccessToken
	m.refreshToken = result.RefreshToken
	m.state = StateAuthenticated
	m.generation++
	m.lastLogout = time.Time{}
	tr = m.transitionLocked(StateAuthenticating, StateAuthenticated)
	m.mu.Unlock()

	if err := m.persist(ctx, result); err != nil {
		m.log().Warn(m.log().WithUserID(ctx, identity.UserID.String()), "failed to persist session record")
	}
	m.publish(tr)
	return nil
}

// Logout ends the session locally first, then best-effort revokes it on the
// server. Local containers are flushed synchronously via the published
// transition before this method returns.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.identity == nil {
		m.mu.Unlock()
		return nil
	}
	from := m.state
	refreshToken := m.refreshToken
	m.identity = nil
	m.accessToken = ""
	m.refreshToken = ""
	m.generation++
	m.lastLogout = time.Now()
	m.state = StateLoggedOut
	tr := m.transitionLocked(from, StateLoggedOut)
	m.mu.Unlock()

	deleteErr := m.store.Delete(ctx)
	m.publish(tr)

	if refreshToken != "" {
		if err := m.api.Logout(ctx, refreshToken); err != nil {
			m.log().Warn(ctx, "server-side logout failed, session revoked locally")
		}
	}

	m.scheduleGraceExpiry()

	if deleteErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, deleteErr, "deleting persisted session")
	}
	return nil
}

// AwaitRefresh collapses concurrent refresh demands into one in-flight call;
// every waiter receives the same outcome, and the slot clears on completion
// so the next authorization failure can trigger a fresh refresh.
func (m *Manager) AwaitRefresh(ctx context.Context) error {
	_, err, _ := m.sf.Do(refreshKey, func() (any, error) {
		return nil, m.refresh(ctx)
	})
	return err
}

func (m *Manager) refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.withinLogoutGraceLocked() {
		m.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeAuthRequired, "session was just ended")
	}
	if m.refreshToken == "" {
		m.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeAuthRequired, "no refresh credential")
	}
	from := m.state
	refreshToken := m.refreshToken
	generation := m.generation
	m.state = StateRefreshing
	tr := m.transitionLocked(from, StateRefreshing)
	m.mu.Unlock()
	m.publish(tr)

	result, err := m.api.Refresh(ctx, refreshToken)

	m.mu.Lock()
	if m.generation != generation {
		m.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeAuthRequired, "session changed during refresh")
	}

	if err != nil {
		if pkgerrors.CodeOf(err) == pkgerrors.CodeNetworkUnavailable {
			// the credential was not rejected, keep the session
			m.state = StateAuthenticated
			tr := m.transitionLocked(StateRefreshing, StateAuthenticated)
			m.mu.Unlock()
			m.metrics.IncRefresh(metrics.OutcomeFailure)
			m.publish(tr)
			return err
		}
		tr := m.forceLogoutLocked(StateRefreshing)
		m.mu.Unlock()
		if deleteErr := m.store.Delete(ctx); deleteErr != nil {
			m.log().Warn(ctx, "failed to delete persisted session after refresh failure")
		}
		m.metrics.IncRefresh(metrics.OutcomeFailure)
		m.publish(tr)
		return err
	}

	identity := result.Identity
	m.identity = &identity
	m.accessToken = result.AccessToken
	m.refreshToken = result.RefreshToken
	m.state = StateAuthenticated
	tr = m.transitionLocked(StateRefreshing, StateAuthenticated)
	m.mu.Unlock()

	if err := m.persist(ctx, result); err != nil {
		m.log().Warn(ctx, "failed to persist refreshed session record")
	}
	m.metrics.IncRefresh(metrics.OutcomeSuccess)
	m.publish(tr)
	return nil
}

// Verify asks the server who the current credential belongs to and
// downgrades the optimistic identity when the server rejects it. It never
// downgrades inside the logout grace window, and never on a network-level
// failure, which does not prove the credential invalid.
func (m *Manager) Verify(ctx context.Context) error {
	m.mu.Lock()
	if m.identity == nil || m.withinLogoutGraceLocked() {
		m.mu.Unlock()
		return nil
	}
	generation := m.generation
	m.mu.Unlock()

	identity, err := m.api.Me(ctx)
	if err == nil {
		m.mu.Lock()
		if m.generation == generation && m.identity != nil {
			copied := *identity
			m.identity = &copied
		}
		m.mu.Unlock()
		return nil
	}

	if pkgerrors.CodeOf(err) == pkgerrors.CodeNetworkUnavailable {
		return err
	}

	m.mu.Lock()
	if m.generation != generation || m.withinLogoutGraceLocked() || m.identity == nil {
		m.mu.Unlock()
		return nil
	}
	tr := m.forceLogoutLocked(m.state)
	m.mu.Unlock()

	if deleteErr := m.store.Delete(ctx); deleteErr != nil {
		m.log().Warn(ctx, "failed to delete persisted session after rejected verification")
	}
	m.publish(tr)
	return err
}

// AccessToken implements apiclient.TokenSource.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessToken
}

// Generation returns the session-generation token used to detect and discard
// stale asynchronous results from a previous session.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Identity returns a copy of the current identity, or nil when anonymous.
func (m *Manager) Identity() *types.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return nil
	}
	copied := *m.identity
	return &copied
}

// forceLogoutLocked clears the session after a terminal auth failure.
// Callers must hold m.mu and publish the returned transition after
// unlocking; deleting the persisted record is also on the caller.
func (m *Manager) forceLogoutLocked(from State) Transition {
	m.identity = nil
	m.accessToken = ""
	m.refreshToken = ""
	m.generation++
	m.state = StateAnonymous
	return m.transitionLocked(from, StateAnonymous)
}

func (m *Manager) withinLogoutGraceLocked() bool {
	if m.state == StateLoggedOut {
		return true
	}
	return !m.lastLogout.IsZero() && time.Since(m.lastLogout) < m.grace
}

func (m *Manager) scheduleGraceExpiry() {
	if m.grace <= 0 {
		m.expireGrace()
		return
	}
	time.AfterFunc(m.grace, m.expireGrace)
}

func (m *Manager) expireGrace() {
	m.mu.Lock()
	if m.state != StateLoggedOut {
		m.mu.Unlock()
		return
	}
	m.state = StateAnonymous
	tr := m.transitionLocked(StateLoggedOut, StateAnonymous)
	m.mu.Unlock()
	m.publish(tr)
}

func (m *Manager) transitionLocked(from, to State) Transition {
	tr := Transition{From: from, To: to, Generation: m.generation}
	if m.identity != nil {
		copied := *m.identity
		tr.Identity = &copied
	}
	return tr
}

func (m *Manager) publish(tr Transition) {
	m.mu.Lock()
	subscribers := make([]func(Transition), len(m.subscribers))
	copy(subscribers, m.subscribers)
	m.mu.Unlock()

	for _, fn := range subscribers {
		fn(tr)
	}
}

func (m *Manager) persist(ctx context.Context, result *apiclient.LoginResult) error {
	return m.store.Save(ctx, &sessionstore.Record{
		Identity:     result.Identity,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		SavedAt:      time.Now().UTC(),
	})
}

func (m *Manager) log() *logger.Logger {
	if m.logg != nil {
		return m.logg
	}
	return noopLogger
}

var noopLogger = logger.New(logger.Options{ServiceName: "session", Level: logger.ParseLevel("disabled")})
