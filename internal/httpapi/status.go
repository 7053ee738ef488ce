package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"blockhost/internal/stories/status"
)

type statusHandler struct {
	status *status.Service
	logger *slog.Logger
}

func (h *statusHandler) handleServerStatus(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	userID := UserID(r.Context())

	result, err := h.status.Fetch(r.Context(), userID, identifier)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrInvalidIdentifier):
			writeError(w, http.StatusBadRequest, "invalid server identifier")
		case errors.Is(err, status.ErrForbidden):
			writeError(w, http.StatusForbidden, "not your server")
		case errors.Is(err, status.ErrNotFound):
			writeError(w, http.StatusNotFound, "server not found")
		default:
			h.logger.Error("failed to fetch server status", "identifier", identifier, "error", err)
			writeError(w, http.StatusBadGateway, "panel unavailable")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}
