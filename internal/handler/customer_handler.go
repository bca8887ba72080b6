package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
	"github.com/haoweiyu/crm-bff-go/internal/store"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// 3. Customers
// ============================================================

// customerFilterFromQuery maps list query parameters onto the typed
// filter. Empty parameters stay unset.
func customerFilterFromQuery(r *http.Request) domain.CustomerFilter {
	q := r.URL.Query()
	f := domain.CustomerFilter{
		Keyword:  q.Get("keyword"),
		Country:  q.Get("country"),
		Status:   domain.CustomerStatus(q.Get("status")),
		OwnerID:  q.Get("owner_id"),
		Source:   domain.CustomerSource(q.Get("source")),
		DateFrom: q.Get("date_from"),
		DateTo:   q.Get("date_to"),
	}
	if v := q.Get("is_entered"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.IsEntered = &b
		}
	}
	return f
}

func listCustomersHandler(customers *store.Customers, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/customers")
		defer span.End()

		customers.SetFilter(customerFilterFromQuery(r))
		customers.SetPage(parsePagination(r))

		if err := customers.Fetch(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, listResponse{
			Items:      customers.Items(),
			Pagination: customers.Pagination(),
		})
	}
}

func getCustomerHandler(customers *store.Customers, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/customers/{customerID}")
		defer span.End()

		id := chi.URLParam(r, "customerID")
		cust, err := customers.Get(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if cust == nil {
			writeError(w, http.StatusNotFound, "customer not found: "+id)
			return
		}
		writeJSON(w, http.StatusOK, cust)
	}
}

func createCustomerHandler(customers *store.Customers, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/customers")
		defer span.End()

		var cust domain.Customer
		if err := json.NewDecoder(r.Body).Decode(&cust); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if cust.Code == "" || cust.Company == "" {
			writeError(w, http.StatusBadRequest, "code and company are required")
			return
		}

		created, err := customers.Create(ctx, cust)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func updateCustomerHandler(customers *store.Customers, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/customers/{customerID}")
		defer span.End()

		var updates map[string]any
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		delete(updates, "id")

		updated, err := customers.Update(ctx, chi.URLParam(r, "customerID"), updates)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteCustomerHandler(customers *store.Customers, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/customers/{customerID}")
		defer span.End()

		if err := customers.Delete(ctx, chi.URLParam(r, "customerID")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func importCustomersHandler(customers *store.Customers, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/customers/import")
		defer span.End()

		var rows []store.ImportRow
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(rows) == 0 {
			writeError(w, http.StatusBadRequest, "no rows to import")
			return
		}

		result, err := customers.Import(ctx, rows)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
