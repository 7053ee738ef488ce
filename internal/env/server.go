package environment

import (
	"context"
	"log/slog"
	"net/http"

	"blockhost/internal/config"
	"blockhost/internal/httpapi"
)

type Servers struct {
	HTTP struct {
		API           *http.Server
		Observability *http.Server
	}
}

func newServers(ctx context.Context, cfg config.Config, logger *slog.Logger, clients *Clients, services *Services) *Servers {
	var servers Servers

	router := httpapi.NewRouter(cfg, httpapi.Services{
		Billing:      services.Billing,
		Orders:       services.Orders,
		Provisioning: services.Provisioning,
		Status:       services.Status,
		Verifier:     clients.Stripe,
	}, logger.WithGroup("http"))

	servers.HTTP.API = &http.Server{
		Addr:         cfg.API.ADDR(),
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}
	servers.HTTP.Observability = initObservability(ctx, logger.WithGroup("http"), clients, cfg)

	return &servers
}
