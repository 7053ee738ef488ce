package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"blockhost/internal/stories/provisioning"
)

type provisionRequest struct {
	OrderID   string `json:"orderId"`
	GameID    string `json:"gameId"`
	PlanName  string `json:"planName"`
	RAM       int64  `json:"ram"`
	CPU       int64  `json:"cpu"`
	Disk      int64  `json:"disk"`
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`

	VariantID        *string `json:"variantId,omitempty"`
	EggID            *int64  `json:"eggId,omitempty"`
	NestID           *int64  `json:"nestId,omitempty"`
	DockerImage      *string `json:"dockerImage,omitempty"`
	StartupCommand   *string `json:"startupCommand,omitempty"`
	MinecraftVersion *string `json:"minecraftVersion,omitempty"`
}

type provisionResponse struct {
	Success          bool   `json:"success"`
	ServerID         int64  `json:"serverId,omitempty"`
	ServerIdentifier string `json:"serverIdentifier,omitempty"`
	Error            string `json:"error,omitempty"`
}

type provisionHandler struct {
	provisioning *provisioning.Service
	logger       *slog.Logger
}

func (h *provisionHandler) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OrderID == "" || req.GameID == "" || req.UserID == "" || req.UserEmail == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	result, err := h.provisioning.Provision(r.Context(), provisioning.Request{
		OrderID:          req.OrderID,
		GameID:           req.GameID,
		PlanName:         req.PlanName,
		RAM:              req.RAM,
		CPU:              req.CPU,
		Disk:             req.Disk,
		UserID:           req.UserID,
		UserEmail:        req.UserEmail,
		VariantID:        req.VariantID,
		EggID:            req.EggID,
		NestID:           req.NestID,
		DockerImage:      req.DockerImage,
		StartupCommand:   req.StartupCommand,
		MinecraftVersion: req.MinecraftVersion,
	})
	if err != nil {
		h.logger.Error("provisioning failed", "order_id", req.OrderID, "error", err)
		code := http.StatusBadGateway
		if errors.Is(err, provisioning.ErrNoNodes) || errors.Is(err, provisioning.ErrNoAllocations) {
			code = http.StatusConflict
		}
		writeJSON(w, code, provisionResponse{Success: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, provisionResponse{
		Success:          true,
		ServerID:         result.ServerID,
		ServerIdentifier: result.ServerIdentifier,
	})
}
