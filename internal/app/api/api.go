// Package api is the order intake and state-write surface. Every write
// publishes a change-feed event, which is how mutations re-enter the
// dashboards as live updates.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/CesarCrz/cEatsv2-sub000/internal/common/config"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/db"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/httpx"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/logger"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/metrics"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/mq"
	"github.com/CesarCrz/cEatsv2-sub000/internal/domain"
	"github.com/CesarCrz/cEatsv2-sub000/internal/feed"
	"github.com/CesarCrz/cEatsv2-sub000/internal/store"
)

func Run(ctx context.Context, cfg config.App, port int) error {
	lg := logger.New("order-api")

	conn, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := mq.Dial(cfg.Rabbit)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Ping(); err != nil {
		return err
	}
	if err := client.DeclareAll(); err != nil {
		return err
	}

	orders := store.NewOrders(conn, feed.NewPublisher(client))
	h := &handler{orders: orders, lg: lg}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", h.createOrder)
	mux.HandleFunc("GET /orders/{id}", h.getOrder)
	mux.HandleFunc("PATCH /orders/{id}/state", h.updateState)
	mux.HandleFunc("DELETE /orders/{id}", h.deleteOrder)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", metrics.Handler())

	srv := httpx.New(":"+strconv.Itoa(port), mux)
	return srv.Run(ctx)
}

type handler struct {
	orders *store.Orders
	lg     *logger.Logger
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	o, err := h.orders.CreateOrder(r.Context(), req)
	if err != nil {
		if req.Validate() != nil {
			httpx.WriteProblem(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		h.lg.Error("order_create_failed", err, map[string]any{"branch_id": req.BranchID})
		httpx.WriteProblem(w, http.StatusInternalServerError, "db_error", "could not create order")
		return
	}
	metrics.OrdersCreated.Inc()
	h.lg.Info("order_received", map[string]any{"order_id": o.ID, "branch_id": o.BranchID, "total": o.Total})
	httpx.WriteJSON(w, http.StatusCreated, domain.CreateOrderResponse{ID: o.ID, State: o.State, Total: o.Total})
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.OrderByID(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		httpx.WriteProblem(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	if err != nil {
		httpx.WriteProblem(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}

func (h *handler) updateState(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	o, err := h.orders.UpdateOrderState(r.Context(), r.PathValue("id"), req.State)
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteProblem(w, http.StatusNotFound, "not_found", "order not found")
	case errors.Is(err, store.ErrInvalidTransition):
		httpx.WriteProblem(w, http.StatusConflict, "invalid_transition", err.Error())
	case err != nil:
		h.lg.Error("order_state_update_failed", err, map[string]any{"order_id": r.PathValue("id")})
		httpx.WriteProblem(w, http.StatusInternalServerError, "db_error", "could not update order")
	default:
		h.lg.Info("order_state_updated", map[string]any{"order_id": o.ID, "state": o.State})
		httpx.WriteJSON(w, http.StatusOK, o)
	}
}

func (h *handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	err := h.orders.DeleteOrder(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		httpx.WriteProblem(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	if err != nil {
		httpx.WriteProblem(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
