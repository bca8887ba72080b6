package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
	"github.com/haoweiyu/crm-bff-go/internal/infra/observability"
	"github.com/haoweiyu/crm-bff-go/internal/session"
	"github.com/haoweiyu/crm-bff-go/internal/store"

	"go.uber.org/zap"
)

type mockStatsGateway struct {
	stats    *domain.DashboardStats
	err      error
	lastID   string
	lastRole domain.Role
}

func (m *mockStatsGateway) GetDashboardStats(_ context.Context, userID string, role domain.Role) (*domain.DashboardStats, error) {
	m.lastID = userID
	m.lastRole = role
	return m.stats, m.err
}

func TestDashboardFetch_PassesActorAndRole(t *testing.T) {
	gw := &mockStatsGateway{
		stats: &domain.DashboardStats{TotalCustomers: 7, ByCountry: map[string]int{"DE": 7}},
	}
	s := store.NewDashboard(gw, signedInManager(t, domain.RoleSales), observability.NewMetrics(), zap.NewNop())

	if err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gw.lastID != "u-jo@example.com" || gw.lastRole != domain.RoleSales {
		t.Errorf("expected actor scoping, got id='%s' role='%s'", gw.lastID, gw.lastRole)
	}
	if got := s.Stats(); got == nil || got.TotalCustomers != 7 {
		t.Errorf("expected cached snapshot, got %+v", got)
	}
}

func TestDashboardFetch_NoSession(t *testing.T) {
	auth := &fakeAuth{changes: make(chan domain.AuthChange, 1)}
	mgr := session.NewManager(auth, &fakeUsers{users: map[string]*domain.User{}}, zap.NewNop())
	t.Cleanup(mgr.Close)

	s := store.NewDashboard(&mockStatsGateway{}, mgr, observability.NewMetrics(), zap.NewNop())
	err := s.Fetch(context.Background())
	var noSession *domain.ErrNoSession
	if !errors.As(err, &noSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if s.Stats() != nil {
		t.Error("expected no snapshot")
	}
}

func TestDashboardFetch_ErrorKeepsOldSnapshot(t *testing.T) {
	gw := &mockStatsGateway{stats: &domain.DashboardStats{TotalCustomers: 3}}
	s := store.NewDashboard(gw, signedInManager(t, domain.RoleAdmin), observability.NewMetrics(), zap.NewNop())

	if err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}

	gw.err = errors.New("gateway down")
	if err := s.Fetch(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := s.Stats(); got == nil || got.TotalCustomers != 3 {
		t.Error("a failed refresh must keep the previous snapshot")
	}
}
