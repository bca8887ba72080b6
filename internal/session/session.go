// Package session owns the authenticated-user state: the live auth
// session, the CRM profile of the signed-in user, and the role
// predicates the rest of the application keys off. A Manager is
// constructed and injected; there is no package-level instance.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
	"github.com/haoweiyu/crm-bff-go/internal/port"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Manager tracks the current user and session. All methods are safe
// for concurrent use.
type Manager struct {
	auth   port.AuthGateway
	users  port.UserStore
	logger *zap.Logger

	mu      sync.RWMutex
	user    *domain.User
	session *domain.AuthSession
	loading bool

	profileGroup singleflight.Group

	closeOnce sync.Once
	done      chan struct{}
}

// NewManager creates a session manager. Call Initialize to restore a
// persisted session and start consuming auth transitions.
func NewManager(auth port.AuthGateway, users port.UserStore, logger *zap.Logger) *Manager {
	return &Manager{
		auth:   auth,
		users:  users,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Initialize restores any existing session from the gateway, loads the
// matching CRM profile, and starts the auth-change listener. The
// loading flag is cleared on every path out, including failure.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	m.loading = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
	}()

	sess, err := m.auth.GetSession(ctx)
	if err != nil {
		m.logger.Warn("session: restore failed", zap.Error(err))
		go m.consumeAuthChanges()
		return err
	}

	if sess != nil {
		user, err := m.fetchUserProfile(ctx, sess.Identity)
		if err != nil {
			m.logger.Error("session: profile load failed", zap.Error(err))
			go m.consumeAuthChanges()
			return err
		}
		m.setState(user, sess)
	}

	go m.consumeAuthChanges()
	return nil
}

// consumeAuthChanges applies gateway-pushed transitions until Close.
func (m *Manager) consumeAuthChanges() {
	changes := m.auth.SessionChanges()
	for {
		select {
		case <-m.done:
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			m.applyChange(change)
		}
	}
}

func (m *Manager) applyChange(change domain.AuthChange) {
	switch change.Event {
	case domain.AuthSignedOut:
		m.setState(nil, nil)

	case domain.AuthTokenRefreshed:
		m.mu.Lock()
		m.session = change.Session
		m.mu.Unlock()

	case domain.AuthSignedIn:
		if change.Session == nil {
			return
		}
		user, err := m.fetchUserProfile(context.Background(), change.Session.Identity)
		if err != nil {
			m.logger.Error("session: profile load on sign-in failed", zap.Error(err))
			return
		}
		m.setState(user, change.Session)
	}
}

// SignIn authenticates and loads the CRM profile, provisioning it on
// first login.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*domain.User, error) {
	sess, err := m.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	user, err := m.fetchUserProfile(ctx, sess.Identity)
	if err != nil {
		return nil, err
	}

	m.setState(user, sess)
	return user, nil
}

// SignUp registers a new account. New accounts are always provisioned
// with the sales role; elevation happens out of band. A profile
// provisioning failure is logged, not fatal: the next sign-in repairs
// it.
func (m *Manager) SignUp(ctx context.Context, email, password, name string) (*domain.User, error) {
	identity, sess, err := m.auth.SignUp(ctx, email, password, name)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:    identity.ID,
		Email: identity.Email,
		Name:  profileName(*identity),
		Role:  domain.RoleSales,
	}

	created, err := m.users.CreateUser(ctx, *user)
	if err != nil {
		m.logger.Warn("session: profile provisioning deferred",
			zap.String("user_id", identity.ID),
			zap.Error(err),
		)
	} else {
		user = created
	}

	if sess != nil {
		m.setState(user, sess)
	}
	return user, nil
}

// SignOut ends the session. Local state is cleared unconditionally,
// even when the gateway call fails.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.auth.SignOut(ctx)
	m.setState(nil, nil)
	return err
}

// UpdateProfile patches the current user's CRM row and refreshes the
// in-memory copy. Returns false when no user is signed in or the
// update fails; failures are logged, never raised.
func (m *Manager) UpdateProfile(ctx context.Context, updates map[string]any) bool {
	m.mu.RLock()
	cur := m.user
	m.mu.RUnlock()

	if cur == nil {
		return false
	}

	if err := m.users.UpdateUser(ctx, cur.ID, updates); err != nil {
		m.logger.Error("session: profile update failed",
			zap.String("user_id", cur.ID),
			zap.Error(err),
		)
		return false
	}

	fresh, err := m.users.GetUser(ctx, cur.ID)
	if err != nil || fresh == nil {
		m.logger.Warn("session: profile re-read failed", zap.Error(err))
		return true
	}

	m.mu.Lock()
	m.user = fresh
	m.mu.Unlock()
	return true
}

// fetchUserProfile loads the CRM row for an identity, creating it with
// the sales role on first login. Concurrent calls for the same
// identity collapse into one gateway round-trip.
func (m *Manager) fetchUserProfile(ctx context.Context, identity domain.AuthIdentity) (*domain.User, error) {
	v, err, _ := m.profileGroup.Do(identity.ID, func() (any, error) {
		user, err := m.users.GetUser(ctx, identity.ID)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}

		// First login: provision the profile.
		created, err := m.users.CreateUser(ctx, domain.User{
			ID:    identity.ID,
			Email: identity.Email,
			Name:  profileName(identity),
			Role:  domain.RoleSales,
		})
		if err != nil {
			return nil, err
		}
		m.logger.Info("session: provisioned user profile",
			zap.String("user_id", identity.ID),
			zap.String("email", identity.Email),
		)
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.User), nil
}

// profileName picks the display name: auth metadata if present,
// otherwise the email local part.
func profileName(identity domain.AuthIdentity) string {
	if identity.Name != "" {
		return identity.Name
	}
	if at := strings.IndexByte(identity.Email, '@'); at > 0 {
		return identity.Email[:at]
	}
	return identity.Email
}

func (m *Manager) setState(user *domain.User, sess *domain.AuthSession) {
	m.mu.Lock()
	m.user = user
	m.session = sess
	m.mu.Unlock()
}

// Close stops the auth-change listener. Safe to call more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

// ------------------------------------------------------------
// State accessors
// ------------------------------------------------------------

// CurrentUser returns the signed-in user's profile, nil when logged out.
func (m *Manager) CurrentUser() *domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// Session returns the live auth session, nil when logged out.
func (m *Manager) Session() *domain.AuthSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// IsAuthenticated reports whether a user is signed in.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session != nil && m.user != nil
}

// Role returns the signed-in user's role, empty when logged out.
func (m *Manager) Role() domain.Role {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return ""
	}
	return m.user.Role
}

func (m *Manager) IsAdmin() bool  { return m.Role() == domain.RoleAdmin }
func (m *Manager) IsSales() bool  { return m.Role() == domain.RoleSales }
func (m *Manager) IsViewer() bool { return m.Role() == domain.RoleViewer }

// Loading reports whether Initialize is still in flight.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}
