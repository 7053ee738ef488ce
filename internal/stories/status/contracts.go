package status

import (
	"context"

	"blockhost/internal/infra/pterodactyl"
	"blockhost/internal/stories/orders"
)

type (
	storage interface {
		GetOrder(ctx context.Context, criteria orders.GetCriteria) (*orders.Order, error)
	}

	panelClient interface {
		ServerDetails(ctx context.Context, identifier string) (*pterodactyl.ServerDetails, error)
		ServerResources(ctx context.Context, identifier string) (*pterodactyl.ServerStats, error)
	}
)
