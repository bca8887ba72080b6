// Package port defines the interfaces (ports) for the remote data
// gateway. Following hexagonal architecture, these ports decouple the
// session and store layers from the concrete Supabase adapter, and let
// tests substitute in-memory fakes.
package port

import (
	"context"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
)

// AuthGateway is the hosted auth service. Credential checks happen
// remotely; this layer never sees a password hash.
type AuthGateway interface {
	// GetSession returns the current session, or (nil, nil) when none
	// exists.
	GetSession(ctx context.Context) (*domain.AuthSession, error)

	// SignInWithPassword exchanges credentials for a session.
	SignInWithPassword(ctx context.Context, email, password string) (*domain.AuthSession, error)

	// SignUp registers a new identity. The display name travels as
	// user metadata. Depending on the remote confirmation policy the
	// returned session may be nil.
	SignUp(ctx context.Context, email, password, name string) (*domain.AuthIdentity, *domain.AuthSession, error)

	// SignOut invalidates the remote session.
	SignOut(ctx context.Context) error

	// SessionChanges returns the channel on which session transitions
	// are delivered. The channel stays open for the gateway's lifetime.
	SessionChanges() <-chan domain.AuthChange
}

// UserStore reads and writes CRM user rows.
type UserStore interface {
	// GetUser returns (nil, nil) when no row exists — absence is not
	// an error, it triggers auto-provisioning.
	GetUser(ctx context.Context, id string) (*domain.User, error)
	CreateUser(ctx context.Context, u domain.User) (*domain.User, error)
	UpdateUser(ctx context.Context, id string, updates map[string]any) error
}

// CustomerQuery is a scoped, filtered, windowed customer list request.
type CustomerQuery struct {
	Filter domain.CustomerFilter

	// ScopeOwnerID, when set, forces an owner equality predicate
	// independent of (and before) any Filter.OwnerID the caller set.
	ScopeOwnerID string

	// Inclusive row window over the ordered result set.
	From, To int
}

// CustomerStore reads and writes customer rows.
type CustomerStore interface {
	ListCustomers(ctx context.Context, q CustomerQuery) ([]domain.Customer, int, error)
	// GetCustomer returns the row with orders and followups expanded,
	// or (nil, nil) when absent.
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, id string, updates map[string]any) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
	// SetLastFollowDate propagates a followup's date onto the parent
	// customer. Second leg of a two-step, non-transactional write.
	SetLastFollowDate(ctx context.Context, customerID, date string) error
}

// OrderStore reads and writes order rows.
type OrderStore interface {
	ListOrders(ctx context.Context, f domain.OrderFilter, from, to int) ([]domain.Order, int, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	CreateOrder(ctx context.Context, o domain.Order) (*domain.Order, error)
	UpdateOrder(ctx context.Context, id string, updates map[string]any) (*domain.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

// FollowupStore reads and writes followup rows.
type FollowupStore interface {
	ListFollowups(ctx context.Context, customerID string, from, to int) ([]domain.Followup, int, error)
	CreateFollowup(ctx context.Context, f domain.Followup) (*domain.Followup, error)
	UpdateFollowup(ctx context.Context, id string, updates map[string]any) (*domain.Followup, error)
	DeleteFollowup(ctx context.Context, id string) error
	// ListPendingReminders returns followups whose remind_at is set and
	// not after today, oldest first.
	ListPendingReminders(ctx context.Context, today string) ([]domain.Followup, error)
}

// StatsGateway calls the remote dashboard aggregate procedure.
type StatsGateway interface {
	GetDashboardStats(ctx context.Context, userID string, role domain.Role) (*domain.DashboardStats, error)
}
