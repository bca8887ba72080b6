// Package supabase provides a client for Supabase (PostgREST + GoTrue).
// It is the concrete adapter behind every port interface: table reads
// and writes for customers, orders, followups and users, the dashboard
// RPC, and the hosted auth session lifecycle.
package supabase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
	"github.com/haoweiyu/crm-bff-go/internal/infra/observability"
	"github.com/haoweiyu/crm-bff-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to the Supabase PostgREST and auth APIs.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	metrics        *observability.Metrics
	logger         *zap.Logger

	mu      sync.Mutex
	session *domain.AuthSession
	events  chan domain.AuthChange
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		metrics:        metrics,
		logger:         logger,
		events:         make(chan domain.AuthChange, 8),
	}
}

// doRequest executes an authenticated request against PostgREST.
// 404 and 204 responses return (nil, nil) — no data is not an error.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	body, _, err := c.doRequestRange(ctx, method, path, -1, -1)
	return body, err
}

// doRequestRange is doRequest plus an optional inclusive row window.
// When from >= 0 it asks PostgREST for an exact count and returns the
// total parsed from the Content-Range header.
func (c *Client) doRequestRange(ctx context.Context, method, path string, from, to int) ([]byte, int, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, 0, err
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	if from >= 0 {
		req.Header.Set("Prefer", "count=exact")
		req.Header.Set("Range-Unit", "items")
		req.Header.Set("Range", fmt.Sprintf("%d-%d", from, to))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordGatewayDuration(operation(method, path), time.Since(start))
	if err != nil {
		c.metrics.IncrGatewayError(operation(method, path))
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, 0, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, 0, nil // no data
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.IncrGatewayError(operation(method, path))
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, 0, fmt.Errorf("supabase returned status %d: %s", resp.StatusCode, string(body))
	}

	total := parseContentRangeTotal(resp.Header.Get("Content-Range"))

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return body, total, nil
}

// parseContentRangeTotal extracts the total from a PostgREST
// Content-Range header ("0-19/57" or "*/0"). Returns 0 when absent or
// malformed — pagination falls back to an empty count.
func parseContentRangeTotal(header string) int {
	idx := strings.LastIndex(header, "/")
	if idx < 0 {
		return 0
	}
	total, err := strconv.Atoi(header[idx+1:])
	if err != nil {
		return 0
	}
	return total
}

// operation labels a metric sample with "METHOD table".
func operation(method, path string) string {
	table := path
	if i := strings.IndexByte(table, '?'); i >= 0 {
		table = table[:i]
	}
	return method + " " + table
}
