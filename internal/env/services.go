package environment

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"blockhost/internal/config"
	"blockhost/internal/storage"
	"blockhost/internal/stories/billing"
	"blockhost/internal/stories/catalog"
	"blockhost/internal/stories/orders"
	"blockhost/internal/stories/provisioning"
	"blockhost/internal/stories/status"
	"blockhost/internal/workers"
	"blockhost/internal/workers/panelhealth"
	"blockhost/internal/workers/provisionretry"
)

type Services struct {
	Catalog      *catalog.Service
	Orders       *orders.Service
	Provisioning *provisioning.Service
	Billing      *billing.Service
	Status       *status.Service

	WorkerManager *workers.Manager
}

func newServices(_ context.Context, clients *Clients, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	var s Services

	storageImpl := storage.New(clients.Postgres.DB)

	presets, err := provisioning.LoadPresets()
	if err != nil {
		return nil, errors.Wrap(err, "load game presets")
	}

	s.Catalog = catalog.NewService(storageImpl)
	s.Orders = orders.NewService(storageImpl, clients.Pterodactyl, logger.WithGroup("orders"), time.Now)
	s.Provisioning = provisioning.NewService(storageImpl, s.Catalog, clients.Pterodactyl, presets, logger.WithGroup("provisioning"), time.Now)
	s.Billing = billing.NewService(storageImpl, s.Catalog, clients.Stripe, s.Provisioning, s.Orders, clients.Pterodactyl, logger.WithGroup("billing"))
	s.Status = status.NewService(storageImpl, clients.Pterodactyl, logger.WithGroup("status"))

	s.WorkerManager = workers.NewManager(
		logger.WithGroup("workers"),
		provisionretry.NewWorker(storageImpl, s.Billing, s.Provisioning, logger.WithGroup("provision-retry")),
		panelhealth.NewWorker(clients.Pterodactyl, logger.WithGroup("panel-health")),
	)

	return &s, nil
}
