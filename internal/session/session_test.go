package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
	"github.com/haoweiyu/crm-bff-go/internal/session"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockAuthGateway struct {
	session    *domain.AuthSession
	sessionErr error
	signInErr  error
	signUpSess *domain.AuthSession
	signUpErr  error
	signOutErr error
	changes    chan domain.AuthChange
}

func newMockAuth() *mockAuthGateway {
	return &mockAuthGateway{changes: make(chan domain.AuthChange, 8)}
}

func (m *mockAuthGateway) GetSession(_ context.Context) (*domain.AuthSession, error) {
	return m.session, m.sessionErr
}

func (m *mockAuthGateway) SignInWithPassword(_ context.Context, email, _ string) (*domain.AuthSession, error) {
	if m.signInErr != nil {
		return nil, m.signInErr
	}
	sess := &domain.AuthSession{
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
		Identity:    domain.AuthIdentity{ID: "auth-" + email, Email: email},
	}
	m.session = sess
	return sess, nil
}

func (m *mockAuthGateway) SignUp(_ context.Context, email, _, name string) (*domain.AuthIdentity, *domain.AuthSession, error) {
	if m.signUpErr != nil {
		return nil, nil, m.signUpErr
	}
	identity := &domain.AuthIdentity{ID: "auth-" + email, Email: email, Name: name}
	return identity, m.signUpSess, nil
}

func (m *mockAuthGateway) SignOut(_ context.Context) error {
	m.session = nil
	return m.signOutErr
}

func (m *mockAuthGateway) SessionChanges() <-chan domain.AuthChange {
	return m.changes
}

type mockUserStore struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	getErr   error
	creates  int
	getCalls int
}

func newMockUsers() *mockUserStore {
	return &mockUserStore{users: map[string]*domain.User{}}
}

func (m *mockUserStore) GetUser(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.users[id], nil
}

func (m *mockUserStore) CreateUser(_ context.Context, u domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	stored := u
	m.users[u.ID] = &stored
	return &stored, nil
}

func (m *mockUserStore) UpdateUser(_ context.Context, id string, updates map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return errors.New("no such user")
	}
	if name, ok := updates["name"].(string); ok {
		u.Name = name
	}
	return nil
}

// --- Tests ---

func TestSignIn_ProvisionsProfileOnFirstLogin(t *testing.T) {
	auth := newMockAuth()
	users := newMockUsers()
	mgr := session.NewManager(auth, users, zap.NewNop())
	defer mgr.Close()

	user, err := mgr.SignIn(context.Background(), "jo@example.com", "secret")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Role != domain.RoleSales {
		t.Errorf("expected provisioned role sales, got %s", user.Role)
	}
	if user.Name != "jo" {
		t.Errorf("expected name from email local part, got '%s'", user.Name)
	}
	if users.creates != 1 {
		t.Errorf("expected one profile insert, got %d", users.creates)
	}
	if !mgr.IsAuthenticated() {
		t.Error("expected authenticated state after sign-in")
	}
	if !mgr.IsSales() || mgr.IsAdmin() {
		t.Error("role predicates disagree with provisioned role")
	}
}

func TestSignIn_ExistingProfileKeepsRole(t *testing.T) {
	auth := newMockAuth()
	users := newMockUsers()
	users.users["auth-boss@example.com"] = &domain.User{
		ID:    "auth-boss@example.com",
		Email: "boss@example.com",
		Name:  "Boss",
		Role:  domain.RoleAdmin,
	}
	mgr := session.NewManager(auth, users, zap.NewNop())
	defer mgr.Close()

	user, err := mgr.SignIn(context.Background(), "boss@example.com", "secret")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Role != domain.RoleAdmin {
		t.Errorf("expected existing admin role, got %s", user.Role)
	}
	if users.creates != 0 {
		t.Errorf("expected no provisioning, got %d inserts", users.creates)
	}
	if !mgr.IsAdmin() {
		t.Error("expected IsAdmin after admin sign-in")
	}
}

func TestSignIn_BadCredentials(t *testing.T) {
	auth := newMockAuth()
	auth.signInErr = &domain.ErrUnauthorized{Message: "invalid login"}
	mgr := session.NewManager(auth, newMockUsers(), zap.NewNop())
	defer mgr.Close()

	_, err := mgr.SignIn(context.Background(), "jo@example.com", "wrong")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if mgr.IsAuthenticated() {
		t.Error("expected no session after failed sign-in")
	}
}

func TestInitialize_RestoresSession(t *testing.T) {
	auth := newMockAuth()
	auth.session = &domain.AuthSession{
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
		Identity:    domain.AuthIdentity{ID: "u1", Email: "jo@example.com"},
	}
	users := newMockUsers()
	users.users["u1"] = &domain.User{ID: "u1", Email: "jo@example.com", Role: domain.RoleSales}

	mgr := session.NewManager(auth, users, zap.NewNop())
	defer mgr.Close()

	if err := mgr.Initialize(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !mgr.IsAuthenticated() {
		t.Error("expected restored session")
	}
	if mgr.Loading() {
		t.Error("loading flag must be cleared after Initialize")
	}
}

func TestInitialize_ClearsLoadingOnFailure(t *testing.T) {
	auth := newMockAuth()
	auth.sessionErr = errors.New("gateway down")
	mgr := session.NewManager(auth, newMockUsers(), zap.NewNop())
	defer mgr.Close()

	if err := mgr.Initialize(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
	if mgr.Loading() {
		t.Error("loading flag must be cleared even on failure")
	}
	if mgr.IsAuthenticated() {
		t.Error("expected logged-out state")
	}
}

func TestInitialize_NoSessionIsNotAnError(t *testing.T) {
	auth := newMockAuth()
	mgr := session.NewManager(auth, newMockUsers(), zap.NewNop())
	defer mgr.Close()

	if err := mgr.Initialize(context.Background()); err != nil {
		t.Fatalf("expected no error for absent session, got %v", err)
	}
	if mgr.IsAuthenticated() {
		t.Error("expected logged-out state")
	}
	if mgr.Role() != "" {
		t.Errorf("expected empty role, got %s", mgr.Role())
	}
}

func TestSignOut_ClearsStateEvenOnGatewayError(t *testing.T) {
	auth := newMockAuth()
	users := newMockUsers()
	mgr := session.NewManager(auth, users, zap.NewNop())
	defer mgr.Close()

	if _, err := mgr.SignIn(context.Background(), "jo@example.com", "secret"); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}

	auth.signOutErr = errors.New("gateway down")
	if err := mgr.SignOut(context.Background()); err == nil {
		t.Fatal("expected gateway error to surface")
	}
	if mgr.IsAuthenticated() {
		t.Error("local state must be cleared regardless of gateway outcome")
	}
	if mgr.CurrentUser() != nil || mgr.Session() != nil {
		t.Error("expected nil user and session after sign-out")
	}
}

func TestSignUp_ForcesSalesRole(t *testing.T) {
	auth := newMockAuth()
	users := newMockUsers()
	mgr := session.NewManager(auth, users, zap.NewNop())
	defer mgr.Close()

	user, err := mgr.SignUp(context.Background(), "new@example.com", "secret", "New Person")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Role != domain.RoleSales {
		t.Errorf("new accounts must be sales, got %s", user.Role)
	}
	if user.Name != "New Person" {
		t.Errorf("expected metadata name, got '%s'", user.Name)
	}
	// Confirmation-required deployments return no session.
	if mgr.IsAuthenticated() {
		t.Error("expected no session before confirmation")
	}
}

func TestUpdateProfile(t *testing.T) {
	auth := newMockAuth()
	users := newMockUsers()
	mgr := session.NewManager(auth, users, zap.NewNop())
	defer mgr.Close()

	if _, err := mgr.SignIn(context.Background(), "jo@example.com", "secret"); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}

	if !mgr.UpdateProfile(context.Background(), map[string]any{"name": "Josephine"}) {
		t.Fatal("expected update to succeed")
	}
	if got := mgr.CurrentUser().Name; got != "Josephine" {
		t.Errorf("expected refreshed name, got '%s'", got)
	}
}

func TestUpdateProfile_NoSession(t *testing.T) {
	mgr := session.NewManager(newMockAuth(), newMockUsers(), zap.NewNop())
	defer mgr.Close()

	if mgr.UpdateProfile(context.Background(), map[string]any{"name": "x"}) {
		t.Error("expected false when no user is signed in")
	}
}

func TestAuthChange_SignedOutClearsState(t *testing.T) {
	auth := newMockAuth()
	users := newMockUsers()
	mgr := session.NewManager(auth, users, zap.NewNop())
	defer mgr.Close()

	if err := mgr.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if _, err := mgr.SignIn(context.Background(), "jo@example.com", "secret"); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}

	auth.changes <- domain.AuthChange{Event: domain.AuthSignedOut}

	deadline := time.After(time.Second)
	for mgr.IsAuthenticated() {
		select {
		case <-deadline:
			t.Fatal("expected SIGNED_OUT to clear state")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestAuthChange_TokenRefreshedSwapsSession(t *testing.T) {
	auth := newMockAuth()
	users := newMockUsers()
	mgr := session.NewManager(auth, users, zap.NewNop())
	defer mgr.Close()

	if err := mgr.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if _, err := mgr.SignIn(context.Background(), "jo@example.com", "secret"); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}

	refreshed := &domain.AuthSession{
		AccessToken: "tok-2",
		ExpiresAt:   time.Now().Add(2 * time.Hour),
		Identity:    domain.AuthIdentity{ID: "auth-jo@example.com", Email: "jo@example.com"},
	}
	auth.changes <- domain.AuthChange{Event: domain.AuthTokenRefreshed, Session: refreshed}

	deadline := time.After(time.Second)
	for {
		if s := mgr.Session(); s != nil && s.AccessToken == "tok-2" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected refreshed session to be applied")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if got := mgr.CurrentUser(); got == nil {
		t.Error("token refresh must not drop the user")
	}
}
