package httpapi

import (
	"io"
	"log/slog"
	"net/http"

	stripesdk "github.com/stripe/stripe-go/v82"

	"blockhost/internal/stories/billing"
)

// Stripe recommends capping webhook bodies; 64KB covers every event
// type we subscribe to.
const maxWebhookBody = 65536

// EventVerifier checks a raw webhook delivery against its signature.
type EventVerifier interface {
	VerifyEvent(payload []byte, sigHeader string) (stripesdk.Event, error)
}

type webhookHandler struct {
	verifier EventVerifier
	billing  *billing.Service
	logger   *slog.Logger
}

func (h *webhookHandler) handleStripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	sdkEvent, err := h.verifier.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	event := billing.Event{
		ID:      sdkEvent.ID,
		Type:    string(sdkEvent.Type),
		Payload: sdkEvent.Data.Raw,
	}

	if err := h.billing.Process(r.Context(), event); err != nil {
		// Only storage-level failures reach here. Returning 5xx makes
		// the processor redeliver, which the idempotency record makes
		// safe.
		h.logger.Error("failed to record webhook event", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record event")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
