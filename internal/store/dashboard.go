package store

import (
	"context"
	"sync"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
	"github.com/haoweiyu/crm-bff-go/internal/infra/observability"
	"github.com/haoweiyu/crm-bff-go/internal/port"
	"github.com/haoweiyu/crm-bff-go/internal/session"

	"go.uber.org/zap"
)

// Dashboard caches the latest aggregate snapshot for the signed-in
// user. The aggregation itself runs remotely, scoped by the user's
// role: sales numbers cover only their own customers.
type Dashboard struct {
	gateway  port.StatsGateway
	sessions *session.Manager
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu      sync.RWMutex
	stats   *domain.DashboardStats
	loading bool
}

// NewDashboard creates a dashboard store with no snapshot.
func NewDashboard(gateway port.StatsGateway, sessions *session.Manager, metrics *observability.Metrics, logger *zap.Logger) *Dashboard {
	return &Dashboard{
		gateway:  gateway,
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
	}
}

// Fetch refreshes the snapshot for the acting user.
func (s *Dashboard) Fetch(ctx context.Context) error {
	actor := s.sessions.CurrentUser()
	if actor == nil {
		return &domain.ErrNoSession{}
	}

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	stats, err := s.gateway.GetDashboardStats(ctx, actor.ID, actor.Role)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false

	if err != nil {
		s.logger.Warn("dashboard refresh failed, keeping previous snapshot",
			zap.String("user_id", actor.ID),
			zap.Error(err),
		)
		return err
	}

	s.stats = stats
	s.metrics.IncrStoreRefresh("dashboard")
	return nil
}

// Stats returns the last fetched snapshot, nil before the first Fetch.
func (s *Dashboard) Stats() *domain.DashboardStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Loading reports whether a Fetch is in flight.
func (s *Dashboard) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}
