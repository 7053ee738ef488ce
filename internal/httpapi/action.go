package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"blockhost/internal/stories/orders"
)

type actionRequest struct {
	OrderID string `json:"orderId"`
	Action  string `json:"action"`
}

type actionResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type actionHandler struct {
	orders *orders.Service
	logger *slog.Logger
}

func (h *actionHandler) handleServerAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "missing orderId")
		return
	}

	var err error
	switch req.Action {
	case "suspend":
		_, err = h.orders.Suspend(r.Context(), req.OrderID)
	case "unsuspend":
		_, err = h.orders.Reactivate(r.Context(), req.OrderID)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	if err != nil {
		h.logger.Error("server action failed", "order_id", req.OrderID, "action", req.Action, "error", err)
		writeJSON(w, http.StatusConflict, actionResponse{Success: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, actionResponse{Success: true})
}
