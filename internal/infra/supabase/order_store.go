package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
	"github.com/haoweiyu/crm-bff-go/internal/infra/resilience"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// OrderStore implementation — orders table via PostgREST
// ============================================================

const orderSelect = "*,customer:customers(id,code,company,contact)"

func buildOrderListPath(f domain.OrderFilter) string {
	var b strings.Builder
	b.WriteString("orders?select=" + orderSelect)

	if f.Keyword != "" {
		pat := escPattern(f.Keyword)
		b.WriteString("&or=(order_no.ilike." + pat + ",product.ilike." + pat + ")")
	}
	if f.Status != "" {
		b.WriteString("&status=eq." + esc(string(f.Status)))
	}
	if f.CustomerID != "" {
		b.WriteString("&customer_id=eq." + esc(f.CustomerID))
	}
	if f.DateFrom != "" {
		b.WriteString("&create_date=gte." + esc(f.DateFrom))
	}
	if f.DateTo != "" {
		b.WriteString("&create_date=lte." + esc(f.DateTo))
	}

	b.WriteString("&order=create_date.desc")
	return b.String()
}

// ListOrders returns one window of the filtered order set plus the
// exact total.
func (c *Client) ListOrders(ctx context.Context, f domain.OrderFilter, from, to int) ([]domain.Order, int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListOrders")
	defer span.End()
	span.SetAttributes(attribute.Int("page.from", from), attribute.Int("page.to", to))

	path := buildOrderListPath(f)

	var (
		rows  []domain.Order
		total int
	)
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, count, err := c.doRequestRange(ctx, http.MethodGet, path, from, to)
			if err != nil {
				return err
			}
			rows = rows[:0]
			if body != nil {
				if err := json.Unmarshal(body, &rows); err != nil {
					return fmt.Errorf("decode orders: %w", err)
				}
			}
			total = count
			return nil
		})
	})
	if err != nil {
		return nil, 0, &domain.ErrExternalService{Service: "supabase/orders", Err: err}
	}
	return rows, total, nil
}

// ListOrdersByCustomer returns all orders of one customer, newest
// first, unwindowed.
func (c *Client) ListOrdersByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListOrdersByCustomer")
	defer span.End()

	path := fmt.Sprintf("orders?select=%s&customer_id=eq.%s&order=create_date.desc", orderSelect, esc(customerID))
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/orders", Err: err}
	}

	var rows []domain.Order
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode orders: %w", err)
		}
	}
	return rows, nil
}

// GetOrder fetches one order with its customer expanded. (nil, nil)
// when absent.
func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetOrder")
	defer span.End()

	path := fmt.Sprintf("orders?select=%s&id=eq.%s&limit=1", orderSelect, esc(id))
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/orders", Err: err}
	}
	if body == nil || string(body) == "[]" {
		return nil, nil
	}

	var rows []domain.Order
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// CreateOrder inserts an order row and returns it with the customer
// expansion.
func (c *Client) CreateOrder(ctx context.Context, o domain.Order) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateOrder")
	defer span.End()

	if o.ID == "" {
		o.ID = uuid.New().String()
	}

	data := map[string]any{
		"id":          o.ID,
		"customer_id": o.CustomerID,
		"order_no":    o.OrderNo,
		"product":     o.Product,
		"status":      string(o.Status),
		"create_date": o.CreateDate,
	}
	if o.Profit != 0 {
		data["profit"] = o.Profit
	}
	if o.Remark != "" {
		data["remark"] = o.Remark
	}

	body, err := c.doPost(ctx, "orders?select="+orderSelect, data)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var rows []domain.Order
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode created order: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "order", ID: o.ID}
	}
	return &rows[0], nil
}

// UpdateOrder applies a partial update and returns the updated row.
func (c *Client) UpdateOrder(ctx context.Context, id string, updates map[string]any) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateOrder")
	defer span.End()

	path := fmt.Sprintf("orders?id=eq.%s&select=%s", esc(id), orderSelect)
	body, err := c.doPatch(ctx, path, updates, true)
	if err != nil {
		return nil, err
	}

	var rows []domain.Order
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode updated order: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "order", ID: id}
	}
	return &rows[0], nil
}

// DeleteOrder removes an order row.
func (c *Client) DeleteOrder(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteOrder")
	defer span.End()

	return c.doDelete(ctx, "orders?id=eq."+esc(id))
}
