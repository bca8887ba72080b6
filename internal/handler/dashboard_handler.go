package handler

import (
	"net/http"

	"github.com/haoweiyu/crm-bff-go/internal/store"

	"go.uber.org/zap"
)

// ============================================================
// 6. Dashboard
// ============================================================

func dashboardStatsHandler(dashboard *store.Dashboard, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/stats")
		defer span.End()

		if err := dashboard.Fetch(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, dashboard.Stats())
	}
}
