package environment

import (
	"context"
	"log/slog"

	"blockhost/internal/config"
	"blockhost/internal/infra/postgres"
	"blockhost/internal/infra/pterodactyl"
	"blockhost/internal/infra/stripe"
)

type Clients struct {
	Postgres    *postgres.DB
	Pterodactyl *pterodactyl.Client
	Stripe      *stripe.Client
}

func newClients(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Clients, error) {
	db, err := providePostgres(ctx, cfg)
	if err != nil {
		return nil, err
	}

	panel, err := providePterodactyl(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Clients{
		Postgres:    db,
		Pterodactyl: panel,
		Stripe:      stripe.NewClient(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, logger.WithGroup("stripe")),
	}, nil
}

func providePostgres(ctx context.Context, cfg config.Config) (*postgres.DB, error) {
	opts := []postgres.Option{
		postgres.WithDSN(cfg.DB.DSN),
		postgres.WithMaxOpenConns(cfg.DB.MaxOpenConns),
		postgres.WithMaxIdleConns(cfg.DB.MaxIdleConns),
		postgres.WithConnMaxLifetime(cfg.DB.MaxLifetime),
	}

	return postgres.New(ctx, opts...)
}

func providePterodactyl(cfg config.Config, logger *slog.Logger) (*pterodactyl.Client, error) {
	return pterodactyl.NewClient(
		cfg.Panel.URL,
		cfg.Panel.AppKey,
		cfg.Panel.ClientKey,
		cfg.Panel.Timeout,
		cfg.Panel.RateLimit.RPS,
		cfg.Panel.RateLimit.Burst,
		logger.WithGroup("pterodactyl"),
	)
}
