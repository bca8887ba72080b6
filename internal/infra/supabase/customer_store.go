package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
	"github.com/haoweiyu/crm-bff-go/internal/infra/resilience"
	"github.com/haoweiyu/crm-bff-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// CustomerStore implementation — customers table via PostgREST
// ============================================================

const customerSelect = "*,owner:users!owner_id(id,email,name)"

// customerDetailSelect also embeds the child collections.
const customerDetailSelect = "*,owner:users!owner_id(id,email,name),orders(*),followups(*,follower:users!follower_id(id,email,name))"

// keyword search targets, matched disjunctively with ilike.
var customerKeywordFields = []string{"company", "contact", "email", "phone", "code"}

// buildCustomerListPath translates a CustomerQuery into a PostgREST
// query string. Predicate order is fixed: scope first, then the
// caller's filters, then ordering.
func buildCustomerListPath(q port.CustomerQuery) string {
	var b strings.Builder
	b.WriteString("customers?select=" + customerSelect)

	if q.ScopeOwnerID != "" {
		b.WriteString("&owner_id=eq." + esc(q.ScopeOwnerID))
	}

	f := q.Filter
	if f.Keyword != "" {
		pat := escPattern(f.Keyword)
		parts := make([]string, 0, len(customerKeywordFields))
		for _, field := range customerKeywordFields {
			parts = append(parts, field+".ilike."+pat)
		}
		b.WriteString("&or=(" + strings.Join(parts, ",") + ")")
	}
	if f.Country != "" {
		b.WriteString("&country=eq." + esc(f.Country))
	}
	if f.Status != "" {
		b.WriteString("&status=eq." + esc(string(f.Status)))
	}
	if f.IsEntered != nil {
		b.WriteString(fmt.Sprintf("&is_entered=eq.%t", *f.IsEntered))
	}
	if f.OwnerID != "" {
		b.WriteString("&owner_id=eq." + esc(f.OwnerID))
	}
	if f.Source != "" {
		b.WriteString("&source=eq." + esc(string(f.Source)))
	}
	if f.DateFrom != "" {
		b.WriteString("&inquiry_date=gte." + esc(f.DateFrom))
	}
	if f.DateTo != "" {
		b.WriteString("&inquiry_date=lte." + esc(f.DateTo))
	}

	b.WriteString("&order=created_at.desc")
	return b.String()
}

// ListCustomers returns one window of the scoped, filtered customer
// set plus the exact total for the filter.
func (c *Client) ListCustomers(ctx context.Context, q port.CustomerQuery) ([]domain.Customer, int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCustomers")
	defer span.End()
	span.SetAttributes(attribute.Int("page.from", q.From), attribute.Int("page.to", q.To))

	path := buildCustomerListPath(q)

	var (
		rows  []domain.Customer
		total int
	)
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, count, err := c.doRequestRange(ctx, http.MethodGet, path, q.From, q.To)
			if err != nil {
				return err
			}
			rows = rows[:0]
			if body != nil {
				if err := json.Unmarshal(body, &rows); err != nil {
					return fmt.Errorf("decode customers: %w", err)
				}
			}
			total = count
			return nil
		})
	})
	if err != nil {
		return nil, 0, &domain.ErrExternalService{Service: "supabase/customers", Err: err}
	}
	return rows, total, nil
}

// GetCustomer fetches one customer with owner, orders and followups
// expanded. (nil, nil) when absent.
func (c *Client) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCustomer")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", id))

	path := fmt.Sprintf("customers?select=%s&id=eq.%s&limit=1", customerDetailSelect, esc(id))
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/customers", Err: err}
	}
	if body == nil || string(body) == "[]" {
		return nil, nil
	}

	var rows []domain.Customer
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode customer: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// CreateCustomer inserts a customer row and returns it with the owner
// expansion applied.
func (c *Client) CreateCustomer(ctx context.Context, cust domain.Customer) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateCustomer")
	defer span.End()

	if cust.ID == "" {
		cust.ID = uuid.New().String()
	}

	data := map[string]any{
		"id":           cust.ID,
		"code":         cust.Code,
		"inquiry_date": cust.InquiryDate,
		"status":       string(cust.Status),
		"is_entered":   cust.IsEntered,
		"country":      cust.Country,
		"contact":      cust.Contact,
		"company":      cust.Company,
		"product":      cust.Product,
		"source":       string(cust.Source),
		"owner_id":     cust.OwnerID,
	}
	if cust.Email != "" {
		data["email"] = cust.Email
	}
	if cust.Phone != "" {
		data["phone"] = cust.Phone
	}
	if cust.FollowMethod != "" {
		data["follow_method"] = string(cust.FollowMethod)
	}
	if cust.Remark != "" {
		data["remark"] = cust.Remark
	}
	if cust.LastFollowDate != "" {
		data["last_follow_date"] = cust.LastFollowDate
	}

	body, err := c.doPost(ctx, "customers?select="+customerSelect, data)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	var rows []domain.Customer
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode created customer: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: cust.ID}
	}
	return &rows[0], nil
}

// UpdateCustomer applies a partial update and returns the updated row
// with the owner expansion.
func (c *Client) UpdateCustomer(ctx context.Context, id string, updates map[string]any) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateCustomer")
	defer span.End()

	path := fmt.Sprintf("customers?id=eq.%s&select=%s", esc(id), customerSelect)
	body, err := c.doPatch(ctx, path, updates, true)
	if err != nil {
		return nil, err
	}

	var rows []domain.Customer
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode updated customer: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: id}
	}
	return &rows[0], nil
}

// DeleteCustomer removes a customer row.
func (c *Client) DeleteCustomer(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteCustomer")
	defer span.End()

	return c.doDelete(ctx, "customers?id=eq."+esc(id))
}

// SetLastFollowDate stamps the parent customer after a followup write.
func (c *Client) SetLastFollowDate(ctx context.Context, customerID, date string) error {
	ctx, span := tracer.Start(ctx, "Supabase.SetLastFollowDate")
	defer span.End()

	path := "customers?id=eq." + esc(customerID)
	_, err := c.doPatch(ctx, path, map[string]any{"last_follow_date": date}, false)
	return err
}
