package handler

import (
	"encoding/json"
	"net/http"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
	"github.com/haoweiyu/crm-bff-go/internal/store"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// 5. Followups
// ============================================================

func listFollowupsHandler(followups *store.Followups, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/followups")
		defer span.End()

		followups.SetCustomer(r.URL.Query().Get("customer_id"))
		followups.SetPage(parsePagination(r))

		if err := followups.Fetch(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, listResponse{
			Items:      followups.Items(),
			Pagination: followups.Pagination(),
		})
	}
}

func createFollowupHandler(followups *store.Followups, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/followups")
		defer span.End()

		var f domain.Followup
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if f.CustomerID == "" || f.FollowDate == "" || f.Content == "" {
			writeError(w, http.StatusBadRequest, "customer_id, follow_date and content are required")
			return
		}

		created, err := followups.Create(ctx, f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func updateFollowupHandler(followups *store.Followups, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/followups/{followupID}")
		defer span.End()

		var updates map[string]any
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		delete(updates, "id")

		updated, err := followups.Update(ctx, chi.URLParam(r, "followupID"), updates)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteFollowupHandler(followups *store.Followups, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/followups/{followupID}")
		defer span.End()

		if err := followups.Delete(ctx, chi.URLParam(r, "followupID")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func pendingRemindersHandler(followups *store.Followups, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/followups/reminders")
		defer span.End()

		rows, err := followups.PendingReminders(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": rows})
	}
}
