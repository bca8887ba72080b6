package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
)

// ============================================================
// UserStore implementation — users table via PostgREST
// ============================================================

// GetUser looks up a CRM user row by id. Absence is (nil, nil): the
// session layer auto-provisions missing rows.
func (c *Client) GetUser(ctx context.Context, id string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUser")
	defer span.End()

	path := fmt.Sprintf("users?id=eq.%s&limit=1", esc(id))
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	if body == nil || string(body) == "[]" {
		return nil, nil
	}

	var rows []domain.User
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// CreateUser inserts a user row. The id must match the auth identity.
func (c *Client) CreateUser(ctx context.Context, u domain.User) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateUser")
	defer span.End()

	data := map[string]any{
		"id":    u.ID,
		"email": u.Email,
		"name":  u.Name,
		"role":  string(u.Role),
	}

	body, err := c.doPost(ctx, "users", data)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	var rows []domain.User
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode created user: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "user", ID: u.ID}
	}
	return &rows[0], nil
}

// UpdateUser applies a partial update to a user row.
func (c *Client) UpdateUser(ctx context.Context, id string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateUser")
	defer span.End()

	path := fmt.Sprintf("users?id=eq.%s", esc(id))
	_, err := c.doPatch(ctx, path, updates, false)
	return err
}
