package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"blockhost/internal/config"
	"blockhost/internal/stories/billing"
	"blockhost/internal/stories/orders"
	"blockhost/internal/stories/provisioning"
	"blockhost/internal/stories/status"
)

type Services struct {
	Billing      *billing.Service
	Orders       *orders.Service
	Provisioning *provisioning.Service
	Status       *status.Service
	Verifier     EventVerifier
}

// NewRouter assembles the public API surface: the Stripe webhook sink,
// the token-guarded internal endpoints, and the customer status facade.
func NewRouter(cfg config.Config, services Services, logger *slog.Logger) *chi.Mux {
	webhook := &webhookHandler{verifier: services.Verifier, billing: services.Billing, logger: logger.With("handler", "webhook")}
	provision := &provisionHandler{provisioning: services.Provisioning, logger: logger.With("handler", "provision")}
	action := &actionHandler{orders: services.Orders, logger: logger.With("handler", "action")}
	srvStatus := &statusHandler{status: services.Status, logger: logger.With("handler", "status")}
	invoices := &invoicesHandler{billing: services.Billing, logger: logger.With("handler", "invoices")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/webhooks/stripe", webhook.handleStripe)

	r.Route("/internal", func(r chi.Router) {
		r.Use(requireService(cfg.Internal.ServiceToken))
		r.Post("/provision", provision.handleProvision)
		r.Post("/servers/action", action.handleServerAction)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(requireUser(cfg.Auth.JWTSecret))
		r.Get("/servers/{identifier}/status", srvStatus.handleServerStatus)
		r.Get("/invoices", invoices.handleListInvoices)
	})

	return r
}
