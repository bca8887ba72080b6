package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
	"github.com/haoweiyu/crm-bff-go/internal/infra/resilience"

	"github.com/google/uuid"
)

// ============================================================
// FollowupStore implementation — followups table via PostgREST
// ============================================================

const followupSelect = "*,follower:users!follower_id(id,email,name),customer:customers(id,code,company)"

// ListFollowups returns one window of followups, newest first,
// optionally restricted to one customer.
func (c *Client) ListFollowups(ctx context.Context, customerID string, from, to int) ([]domain.Followup, int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListFollowups")
	defer span.End()

	path := "followups?select=" + followupSelect
	if customerID != "" {
		path += "&customer_id=eq." + esc(customerID)
	}
	path += "&order=follow_date.desc"

	var (
		rows  []domain.Followup
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
					return fmt.Errorf("decode followups: %w", err)
				}
			}
			total = count
			return nil
		})
	})
	if err != nil {
		return nil, 0, &domain.ErrExternalService{Service: "supabase/followups", Err: err}
	}
	return rows, total, nil
}

// CreateFollowup inserts a followup row and returns it with the
// follower and customer expansions.
func (c *Client) CreateFollowup(ctx context.Context, f domain.Followup) (*domain.Followup, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateFollowup")
	defer span.End()

	if f.ID == "" {
		f.ID = uuid.New().String()
	}

	data := map[string]any{
		"id":          f.ID,
		"customer_id": f.CustomerID,
		"follow_date": f.FollowDate,
		"method":      string(f.Method),
		"content":     f.Content,
		"follower_id": f.FollowerID,
	}
	if f.NextPlan != "" {
		data["next_plan"] = f.NextPlan
	}
	if f.RemindAt != "" {
		data["remind_at"] = f.RemindAt
	}

	body, err := c.doPost(ctx, "followups?select="+followupSelect, data)
	if err != nil {
		return nil, fmt.Errorf("create followup: %w", err)
	}

	var rows []domain.Followup
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode created followup: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "followup", ID: f.ID}
	}
	return &rows[0], nil
}

// UpdateFollowup applies a partial update and returns the updated row.
func (c *Client) UpdateFollowup(ctx context.Context, id string, updates map[string]any) (*domain.Followup, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateFollowup")
	defer span.End()

	path := fmt.Sprintf("followups?id=eq.%s&select=%s", esc(id), followupSelect)
	body, err := c.doPatch(ctx, path, updates, true)
	if err != nil {
		return nil, err
	}

	var rows []domain.Followup
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode updated followup: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "followup", ID: id}
	}
	return &rows[0], nil
}

// DeleteFollowup removes a followup row.
func (c *Client) DeleteFollowup(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteFollowup")
	defer span.End()

	return c.doDelete(ctx, "followups?id=eq."+esc(id))
}

// ListPendingReminders returns followups whose reminder is due on or
// before today, oldest first.
func (c *Client) ListPendingReminders(ctx context.Context, today string) ([]domain.Followup, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListPendingReminders")
	defer span.End()

	path := fmt.Sprintf("followups?select=%s&remind_at=lte.%s&remind_at=not.is.null&order=remind_at.asc",
		followupSelect, esc(today))
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/followups", Err: err}
	}

	var rows []domain.Followup
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode reminders: %w", err)
		}
	}
	return rows, nil
}
