// Package store holds the stateful entity-access layer: one store per
// entity family, each owning a cached list window, its filter and
// pagination, and the mutations that keep that state consistent with
// the remote gateway. Stores are constructed and injected; reads off a
// store never hit the gateway.
package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
	"github.com/haoweiyu/crm-bff-go/internal/infra/observability"
	"github.com/haoweiyu/crm-bff-go/internal/port"
	"github.com/haoweiyu/crm-bff-go/internal/session"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Customers is the customer list store. Sales users are scoped to
// their own rows on every read; admins and viewers see everything.
type Customers struct {
	gateway  port.CustomerStore
	sessions *session.Manager
	metrics  *observability.Metrics
	logger   *zap.Logger
	validate *validator.Validate

	seq atomic.Uint64

	mu         sync.RWMutex
	items      []domain.Customer
	pagination domain.Pagination
	filter     domain.CustomerFilter
	loading    bool
}

// NewCustomers creates a customer store with an empty first page.
func NewCustomers(gateway port.CustomerStore, sessions *session.Manager, pageSize int, metrics *observability.Metrics, logger *zap.Logger) *Customers {
	return &Customers{
		gateway:    gateway,
		sessions:   sessions,
		metrics:    metrics,
		logger:     logger,
		validate:   validator.New(),
		pagination: domain.Pagination{Page: 1, PageSize: pageSize},
	}
}

// scope returns the forced owner predicate for the acting user: their
// own id for sales, empty (unscoped) for admin and viewer.
func (s *Customers) scope() string {
	if s.sessions.IsSales() {
		if u := s.sessions.CurrentUser(); u != nil {
			return u.ID
		}
	}
	return ""
}

// Fetch replaces the cached window with the current page of the
// scoped, filtered customer set. A response that arrives after a newer
// Fetch started is discarded whole; the newer call owns the state.
func (s *Customers) Fetch(ctx context.Context) error {
	token := s.seq.Add(1)

	s.mu.Lock()
	s.loading = true
	filter := s.filter
	from, to := s.pagination.Window()
	s.mu.Unlock()

	items, total, err := s.gateway.ListCustomers(ctx, port.CustomerQuery{
		Filter:       filter,
		ScopeOwnerID: s.scope(),
		From:         from,
		To:           to,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.seq.Load() {
		s.metrics.IncrStaleDiscarded("customers")
		s.logger.Debug("store: stale customer response discarded")
		return nil
	}
	s.loading = false

	if err != nil {
		return err
	}

	s.items = items
	s.pagination.Total = total
	s.metrics.IncrStoreRefresh("customers")
	return nil
}

// Get fetches one customer with orders and followups expanded. Sales
// users cannot read customers they do not own.
func (s *Customers) Get(ctx context.Context, id string) (*domain.Customer, error) {
	cust, err := s.gateway.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if cust == nil {
		return nil, nil
	}
	if scope := s.scope(); scope != "" && cust.OwnerID != scope {
		return nil, &domain.ErrForbidden{Action: "read customer " + id}
	}
	return cust, nil
}

// Create inserts a customer. An absent owner defaults to the acting
// user. The new row is prepended locally and the total bumped; the
// next Fetch reconciles ordering with the server.
func (s *Customers) Create(ctx context.Context, cust domain.Customer) (*domain.Customer, error) {
	if cust.OwnerID == "" {
		if u := s.sessions.CurrentUser(); u != nil {
			cust.OwnerID = u.ID
		}
	}

	created, err := s.gateway.CreateCustomer(ctx, cust)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.items = append([]domain.Customer{*created}, s.items...)
	s.pagination.Total++
	s.mu.Unlock()
	return created, nil
}

// Update patches a customer and swaps the cached copy in place.
func (s *Customers) Update(ctx context.Context, id string, updates map[string]any) (*domain.Customer, error) {
	updated, err := s.gateway.UpdateCustomer(ctx, id, updates)
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

// Delete removes a customer and drops it from the cached window.
func (s *Customers) Delete(ctx context.Context, id string) error {
	if err := s.gateway.DeleteCustomer(ctx, id); err != nil {
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

// ------------------------------------------------------------
// Import
// ------------------------------------------------------------

// ImportRow is one customer candidate from a bulk import.
type ImportRow struct {
	Code        string `json:"code" validate:"required"`
	InquiryDate string `json:"inquiry_date" validate:"required,datetime=2006-01-02"`
	Status      string `json:"status" validate:"required"`
	Country     string `json:"country" validate:"required"`
	Contact     string `json:"contact" validate:"required"`
	Company     string `json:"company" validate:"required"`
	Product     string `json:"product" validate:"required"`
	Source      string `json:"source" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" validate:"omitempty"`
	Remark      string `json:"remark"`
}

// Import inserts rows one at a time, accumulating per-row failures
// instead of aborting. Row indexes in the result are zero-based input
// positions. All imported rows are owned by the acting user.
func (s *Customers) Import(ctx context.Context, rows []ImportRow) (*domain.ImportResult, error) {
	actor := s.sessions.CurrentUser()
	if actor == nil {
		return nil, &domain.ErrNoSession{}
	}

	result := &domain.ImportResult{}
	for i, row := range rows {
		if err := s.validate.Struct(row); err != nil {
			s.recordFailure(result, i, fmt.Sprintf("invalid row: %v", err))
			continue
		}

		_, err := s.gateway.CreateCustomer(ctx, domain.Customer{
			Code:        row.Code,
			InquiryDate: row.InquiryDate,
			Status:      domain.CustomerStatus(row.Status),
			Country:     row.Country,
			Contact:     row.Contact,
			Company:     row.Company,
			Product:     row.Product,
			Source:      domain.CustomerSource(row.Source),
			Email:       row.Email,
			Phone:       row.Phone,
			Remark:      row.Remark,
			OwnerID:     actor.ID,
		})
		if err != nil {
			s.recordFailure(result, i, err.Error())
			continue
		}

		result.Success++
		s.metrics.IncrImportRow("success")
	}

	if result.Success > 0 {
		// Counts changed server-side; refresh the window.
		if err := s.Fetch(ctx); err != nil {
			s.logger.Warn("store: post-import refresh failed", zap.Error(err))
		}
	}
	return result, nil
}

func (s *Customers) recordFailure(result *domain.ImportResult, index int, msg string) {
	result.Failed++
	result.Errors = append(result.Errors, domain.ImportError{Index: index, Message: msg})
	s.metrics.IncrImportRow("failed")
}

// ------------------------------------------------------------
// State accessors and mutators
// ------------------------------------------------------------

// Items returns the cached window.
func (s *Customers) Items() []domain.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Customer, len(s.items))
	copy(out, s.items)
	return out
}

// Pagination returns the current page descriptor, including the last
// known total.
func (s *Customers) Pagination() domain.Pagination {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pagination
}

// Loading reports whether a Fetch is in flight.
func (s *Customers) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// SetFilter replaces the filter and rewinds to the first page.
func (s *Customers) SetFilter(f domain.CustomerFilter) {
	s.mu.Lock()
	s.filter = f
	s.pagination.Page = 1
	s.mu.Unlock()
}

// SetPage moves the window. Page numbers start at 1.
func (s *Customers) SetPage(page, pageSize int) {
	s.mu.Lock()
	if page >= 1 {
		s.pagination.Page = page
	}
	if pageSize >= 1 {
		s.pagination.PageSize = pageSize
	}
	s.mu.Unlock()
}
