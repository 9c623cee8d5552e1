package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alextreichler/mayajewelry/internal/auth"
	"github.com/alextreichler/mayajewelry/internal/models"
)

// ListOrders returns every order, newest first. The body is always an array.
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Store.GetOrders(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch orders", err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *AdminHandler) OrderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.GetOrderStats(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch order stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, err := h.Store.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch order", err)
		return
	}
	if order == nil {
		writeMessage(w, http.StatusNotFound, "Order not found")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// DeleteOrder removes the order row. Its image stays in the upload dir.
func (h *AdminHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	deleted, err := h.Store.DeleteOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to delete order", err)
		return
	}
	if !deleted {
		writeMessage(w, http.StatusNotFound, "Order not found")
		return
	}
	ordersDeleted.Inc()
	admin, _ := auth.IdentityFrom(r.Context())
	slog.Info("Order deleted", "id", id, "by", admin.Username)
	writeMessage(w, http.StatusOK, "Order deleted successfully")
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid order ID")
		return 0, false
	}
	return id, true
}
