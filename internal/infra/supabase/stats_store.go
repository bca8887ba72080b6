package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
	"github.com/haoweiyu/crm-bff-go/internal/infra/resilience"
)

// ============================================================
// StatsGateway implementation — get_dashboard_stats RPC
// ============================================================

// GetDashboardStats calls the database function that aggregates the
// dashboard numbers server-side. Sales users only see their own rows;
// the function applies that scoping from the role argument.
func (c *Client) GetDashboardStats(ctx context.Context, userID string, role domain.Role) (*domain.DashboardStats, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetDashboardStats")
	defer span.End()

	payload := map[string]any{
		"user_id_param":   userID,
		"user_role_param": string(role),
	}

	var body []byte
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			b, err := c.doPost(ctx, "rpc/get_dashboard_stats", payload)
			if err != nil {
				return err
			}
			body = b
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/rpc", Err: err}
	}

	stats := &domain.DashboardStats{
		ByCountry: map[string]int{},
		BySource:  map[string]int{},
		ByStatus:  map[string]int{},
	}
	if len(body) == 0 || string(body) == "null" {
		return stats, nil
	}
	if err := json.Unmarshal(body, stats); err != nil {
		return nil, fmt.Errorf("decode dashboard stats: %w", err)
	}
	if stats.ByCountry == nil {
		stats.ByCountry = map[string]int{}
	}
	if stats.BySource == nil {
		stats.BySource = map[string]int{}
	}
	if stats.ByStatus == nil {
		stats.ByStatus = map[string]int{}
	}
	return stats, nil
}
