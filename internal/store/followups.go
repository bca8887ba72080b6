package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
	"github.com/haoweiyu/crm-bff-go/internal/infra/observability"
	"github.com/haoweiyu/crm-bff-go/internal/port"
	"github.com/haoweiyu/crm-bff-go/internal/session"

	"go.uber.org/zap"
)

// Followups is the followup list store. Creating a followup also
// stamps the parent customer's last_follow_date; the two writes are
// separate gateway calls, so a crash between them leaves the stamp
// behind until the next followup write repairs it. Stamp failures are
// logged and counted, never raised.
type Followups struct {
	gateway   port.FollowupStore
	customers port.CustomerStore
	sessions  *session.Manager
	metrics   *observability.Metrics
	logger    *zap.Logger

	seq atomic.Uint64

	mu         sync.RWMutex
	items      []domain.Followup
	pagination domain.Pagination
	customerID string
	loading    bool
}

// NewFollowups creates a followup store with an empty first page.
func NewFollowups(gateway port.FollowupStore, customers port.CustomerStore, sessions *session.Manager, pageSize int, metrics *observability.Metrics, logger *zap.Logger) *Followups {
	return &Followups{
		gateway:    gateway,
		customers:  customers,
		sessions:   sessions,
		metrics:    metrics,
		logger:     logger,
		pagination: domain.Pagination{Page: 1, PageSize: pageSize},
	}
}

// Fetch replaces the cached window with the current page, optionally
// restricted to the selected customer. Stale responses are discarded
// whole.
func (s *Followups) Fetch(ctx context.Context) error {
	token := s.seq.Add(1)

	s.mu.Lock()
	s.loading = true
	customerID := s.customerID
	from, to := s.pagination.Window()
	s.mu.Unlock()

	items, total, err := s.gateway.ListFollowups(ctx, customerID, from, to)

	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.seq.Load() {
		s.metrics.IncrStaleDiscarded("followups")
		s.logger.Debug("store: stale followup response discarded")
		return nil
	}
	s.loading = false

	if err != nil {
		return err
	}

	s.items = items
	s.pagination.Total = total
	s.metrics.IncrStoreRefresh("followups")
	return nil
}

// Create inserts a followup. The follower defaults to the acting user.
// After the insert, the parent customer's last_follow_date is stamped
// with the followup's date.
func (s *Followups) Create(ctx context.Context, f domain.Followup) (*domain.Followup, error) {
	if f.FollowerID == "" {
		if u := s.sessions.CurrentUser(); u != nil {
			f.FollowerID = u.ID
		}
	}

	created, err := s.gateway.CreateFollowup(ctx, f)
	if err != nil {
		return nil, err
	}

	s.stampCustomer(ctx, created.CustomerID, created.FollowDate)

	s.mu.Lock()
	s.items = append([]domain.Followup{*created}, s.items...)
	s.pagination.Total++
	s.mu.Unlock()
	return created, nil
}

// Update patches a followup and swaps the cached copy in place. When
// the follow date changes, the parent customer is re-stamped.
func (s *Followups) Update(ctx context.Context, id string, updates map[string]any) (*domain.Followup, error) {
	updated, err := s.gateway.UpdateFollowup(ctx, id, updates)
	if err != nil {
		return nil, err
	}

	if _, changed := updates["follow_date"]; changed {
		s.stampCustomer(ctx, updated.CustomerID, updated.FollowDate)
	}

	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i] = *updated
			break
		}
	}
	s.mu.Unlock()
	return updated, nil
}

// Delete removes a followup and drops it from the cached window. The
// customer's last_follow_date deliberately keeps its old value; it
// records that contact happened, not that the record survives.
func (s *Followups) Delete(ctx context.Context, id string) error {
	if err := s.gateway.DeleteFollowup(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			if s.pagination.Total > 0 {
				s.pagination.Total--
			}
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// PendingReminders returns followups whose reminder is due today or
// earlier, oldest first.
func (s *Followups) PendingReminders(ctx context.Context) ([]domain.Followup, error) {
	today := time.Now().Format("2006-01-02")
	return s.gateway.ListPendingReminders(ctx, today)
}

// stampCustomer is the second leg of the followup write. Failure here
// leaves the customer list showing a stale last-contact date until the
// next successful stamp; the followup itself is already durable.
func (s *Followups) stampCustomer(ctx context.Context, customerID, date string) {
	if err := s.customers.SetLastFollowDate(ctx, customerID, date); err != nil {
		s.metrics.IncrCascadeFailure()
		s.logger.Error("store: last_follow_date stamp failed",
			zap.String("customer_id", customerID),
			zap.String("date", date),
			zap.Error(err),
		)
	}
}

// Items returns the cached window.
func (s *Followups) Items() []domain.Followup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Followup, len(s.items))
	copy(out, s.items)
	return out
}

// Pagination returns the current page descriptor.
func (s *Followups) Pagination() domain.Pagination {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pagination
}

// Loading reports whether a Fetch is in flight.
func (s *Followups) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// SetCustomer restricts the window to one customer and rewinds to the
// first page. Empty id lifts the restriction.
func (s *Followups) SetCustomer(customerID string) {
	s.mu.Lock()
	s.customerID = customerID
	s.pagination.Page = 1
	s.mu.Unlock()
}

// SetPage moves the window. Page numbers start at 1.
func (s *Followups) SetPage(page, pageSize int) {
	s.mu.Lock()
	if page >= 1 {
		s.pagination.Page = page
	}
	if pageSize >= 1 {
		s.pagination.PageSize = pageSize
	}
	s.mu.Unlock()
}
