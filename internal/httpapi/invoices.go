package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"blockhost/internal/stories/billing"
)

const invoicePageSize = 50

type invoicesHandler struct {
	billing *billing.Service
	logger  *slog.Logger
}

type invoiceResponse struct {
	ID          string     `json:"id"`
	OrderID     *string    `json:"order_id,omitempty"`
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	PDFURL      *string    `json:"pdf_url,omitempty"`
	HostedURL   *string    `json:"hosted_url,omitempty"`
	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// handleListInvoices returns the authenticated user's billing history,
// newest first.
func (h *invoicesHandler) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	invoices, err := h.billing.ListInvoices(r.Context(), billing.ListInvoicesCriteria{
		UserID: &userID,
		Limit:  invoicePageSize,
	})
	if err != nil {
		h.logger.Error("failed to list invoices", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list invoices")
		return
	}

	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, invoiceResponse{
			ID:          inv.ID,
			OrderID:     inv.OrderID,
			Amount:      inv.Amount,
			Currency:    inv.Currency,
			Status:      string(inv.Status),
			PDFURL:      inv.PDFURL,
			HostedURL:   inv.HostedURL,
			PeriodStart: inv.PeriodStart,
			PeriodEnd:   inv.PeriodEnd,
			CreatedAt:   inv.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"invoices": out})
}
