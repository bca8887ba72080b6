package handler

import (
	"net/http"

	"github.com/haoweiyu/crm-bff-go/internal/infra/observability"
	"github.com/haoweiyu/crm-bff-go/internal/session"
	"github.com/haoweiyu/crm-bff-go/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Stores bundles the entity stores the router serves.
type Stores struct {
	Customers *store.Customers
	Orders    *store.Orders
	Followups *store.Followups
	Dashboard *store.Dashboard
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(sessions *session.Manager, stores Stores, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. Auth & session
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authLoginHandler(sessions, logger))
			r.Post("/register", authRegisterHandler(sessions, logger))
			r.Post("/logout", authLogoutHandler(sessions, logger))
			r.Get("/me", authMeHandler(sessions))
			r.Put("/profile", authProfileHandler(sessions, logger))
		})

		// =============================================
		// 2. Navigation guard
		// =============================================
		r.Get("/navigation/decision", navigationDecisionHandler(sessions))

		// =============================================
		// 3. Customers
		// =============================================
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", listCustomersHandler(stores.Customers, logger))
			r.Post("/", createCustomerHandler(stores.Customers, logger))
			r.Post("/import", importCustomersHandler(stores.Customers, logger))
			r.Get("/{customerID}", getCustomerHandler(stores.Customers, logger))
			r.Put("/{customerID}", updateCustomerHandler(stores.Customers, logger))
			r.Delete("/{customerID}", deleteCustomerHandler(stores.Customers, logger))
			r.Get("/{customerID}/orders", listCustomerOrdersHandler(stores.Orders, logger))
		})

		// =============================================
		// 4. Orders
		// =============================================
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", listOrdersHandler(stores.Orders, logger))
			r.Post("/", createOrderHandler(stores.Orders, logger))
			r.Get("/{orderID}", getOrderHandler(stores.Orders, logger))
			r.Put("/{orderID}", updateOrderHandler(stores.Orders, logger))
			r.Delete("/{orderID}", deleteOrderHandler(stores.Orders, logger))
		})

		// =============================================
		// 5. Followups
		// =============================================
		r.Route("/followups", func(r chi.Router) {
			r.Get("/", listFollowupsHandler(stores.Followups, logger))
			r.Post("/", createFollowupHandler(stores.Followups, logger))
			r.Get("/reminders", pendingRemindersHandler(stores.Followups, logger))
			r.Put("/{followupID}", updateFollowupHandler(stores.Followups, logger))
			r.Delete("/{followupID}", deleteFollowupHandler(stores.Followups, logger))
		})

		// =============================================
		// 6. Dashboard
		// =============================================
		r.Get("/dashboard/stats", dashboardStatsHandler(stores.Dashboard, logger))
	})

	return r
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
