package store

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
	"github.com/haoweiyu/crm-bff-go/internal/infra/observability"
	"github.com/haoweiyu/crm-bff-go/internal/port"

	"go.uber.org/zap"
)

// Orders is the order list store. Orders are not owner-scoped; access
// control happens one level up, on the customer.
type Orders struct {
	gateway port.OrderStore
	metrics *observability.Metrics
	logger  *zap.Logger

	seq atomic.Uint64

	mu         sync.RWMutex
	items      []domain.Order
	pagination domain.Pagination
	filter     domain.OrderFilter
	loading    bool
}

// NewOrders creates an order store with an empty first page.
func NewOrders(gateway port.OrderStore, pageSize int, metrics *observability.Metrics, logger *zap.Logger) *Orders {
	return &Orders{
		gateway:    gateway,
		metrics:    metrics,
		logger:     logger,
		pagination: domain.Pagination{Page: 1, PageSize: pageSize},
	}
}

// Fetch replaces the cached window with the current page. Stale
// responses are discarded whole.
func (s *Orders) Fetch(ctx context.Context) error {
	token := s.seq.Add(1)

	s.mu.Lock()
	s.loading = true
	filter := s.filter
	from, to := s.pagination.Window()
	s.mu.Unlock()

	items, total, err := s.gateway.ListOrders(ctx, filter, from, to)

	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.seq.Load() {
		s.metrics.IncrStaleDiscarded("orders")
		s.logger.Debug("store: stale order response discarded")
		return nil
	}
	s.loading = false

	if err != nil {
		return err
	}

	s.items = items
	s.pagination.Total = total
	s.metrics.IncrStoreRefresh("orders")
	return nil
}

// ForCustomer returns every order of one customer, bypassing the
// cached window.
func (s *Orders) ForCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return s.gateway.ListOrdersByCustomer(ctx, customerID)
}

// Get fetches one order. (nil, nil) when absent.
func (s *Orders) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.gateway.GetOrder(ctx, id)
}

// Create inserts an order and prepends it to the cached window.
func (s *Orders) Create(ctx context.Context, o domain.Order) (*domain.Order, error) {
	created, err := s.gateway.CreateOrder(ctx, o)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.items = append([]domain.Order{*created}, s.items...)
	s.pagination.Total++
	s.mu.Unlock()
	return created, nil
}

// Update patches an order and swaps the cached copy in place.
func (s *Orders) Update(ctx context.Context, id string, updates map[string]any) (*domain.Order, error) {
	updated, err := s.gateway.UpdateOrder(ctx, id, updates)
	if err != nil {
		return nil, err
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

// Delete removes an order and drops it from the cached window.
func (s *Orders) Delete(ctx context.Context, id string) error {
	if err := s.gateway.DeleteOrder(ctx, id); err != nil {
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

// Items returns the cached window.
func (s *Orders) Items() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, len(s.items))
	copy(out, s.items)
	return out
}

// Pagination returns the current page descriptor.
func (s *Orders) Pagination() domain.Pagination {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pagination
}

// Loading reports whether a Fetch is in flight.
func (s *Orders) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// SetFilter replaces the filter and rewinds to the first page.
func (s *Orders) SetFilter(f domain.OrderFilter) {
	s.mu.Lock()
	s.filter = f
	s.pagination.Page = 1
	s.mu.Unlock()
}

// SetPage moves the window. Page numbers start at 1.
func (s *Orders) SetPage(page, pageSize int) {
	s.mu.Lock()
	if page >= 1 {
		s.pagination.Page = page
	}
	if pageSize >= 1 {
		s.pagination.PageSize = pageSize
	}
	s.mu.Unlock()
}
