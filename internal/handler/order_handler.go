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
// 4. Orders
// ============================================================

func orderFilterFromQuery(r *http.Request) domain.OrderFilter {
	q := r.URL.Query()
	return domain.OrderFilter{
		Keyword:    q.Get("keyword"),
		Status:     domain.OrderStatus(q.Get("status")),
		CustomerID: q.Get("customer_id"),
		DateFrom:   q.Get("date_from"),
		DateTo:     q.Get("date_to"),
	}
}

func listOrdersHandler(orders *store.Orders, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/orders")
		defer span.End()

		orders.SetFilter(orderFilterFromQuery(r))
		orders.SetPage(parsePagination(r))

		if err := orders.Fetch(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, listResponse{
			Items:      orders.Items(),
			Pagination: orders.Pagination(),
		})
	}
}

func listCustomerOrdersHandler(orders *store.Orders, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/customers/{customerID}/orders")
		defer span.End()

		rows, err := orders.ForCustomer(ctx, chi.URLParam(r, "customerID"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": rows})
	}
}

func getOrderHandler(orders *store.Orders, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/orders/{orderID}")
		defer span.End()

		id := chi.URLParam(r, "orderID")
		order, err := orders.Get(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if order == nil {
			writeError(w, http.StatusNotFound, "order not found: "+id)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func createOrderHandler(orders *store.Orders, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/orders")
		defer span.End()

		var order domain.Order
		if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if order.CustomerID == "" || order.OrderNo == "" {
			writeError(w, http.StatusBadRequest, "customer_id and order_no are required")
			return
		}

		created, err := orders.Create(ctx, order)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func updateOrderHandler(orders *store.Orders, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/orders/{orderID}")
		defer span.End()

		var updates map[string]any
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		delete(updates, "id")

		updated, err := orders.Update(ctx, chi.URLParam(r, "orderID"), updates)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteOrderHandler(orders *store.Orders, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/orders/{orderID}")
		defer span.End()

		if err := orders.Delete(ctx, chi.URLParam(r, "orderID")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
