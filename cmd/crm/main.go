package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haoweiyu/crm-bff-go/internal/config"
	"github.com/haoweiyu/crm-bff-go/internal/handler"
	"github.com/haoweiyu/crm-bff-go/internal/infra/observability"
	"github.com/haoweiyu/crm-bff-go/internal/infra/resilience"
	"github.com/haoweiyu/crm-bff-go/internal/infra/supabase"
	"github.com/haoweiyu/crm-bff-go/internal/session"
	"github.com/haoweiyu/crm-bff-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("supabase_url", cfg.SupabaseURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("default_page_size", cfg.DefaultPageSize),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "crm-bff")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase")

	// --- Gateway ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	gateway := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cb,
		resilienceCfg,
		metrics,
		logger,
	)

	// --- Session ---
	sessions := session.NewManager(gateway, gateway, logger)
	defer sessions.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	if err := sessions.Initialize(ctx); err != nil {
		logger.Warn("session restore failed, starting signed out", zap.Error(err))
	}
	cancel()

	// --- Stores ---
	stores := handler.Stores{
		Customers: store.NewCustomers(gateway, sessions, cfg.DefaultPageSize, metrics, logger),
		Orders:    store.NewOrders(gateway, cfg.DefaultPageSize, metrics, logger),
		Followups: store.NewFollowups(gateway, gateway, sessions, cfg.DefaultPageSize, metrics, logger),
		Dashboard: store.NewDashboard(gateway, sessions, metrics, logger),
	}

	// --- Router ---
	router := handler.NewRouter(sessions, stores, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
