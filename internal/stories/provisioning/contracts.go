package provisioning

import (
	"context"

	"blockhost/internal/infra/pterodactyl"
	"blockhost/internal/stories/catalog"
	"blockhost/internal/stories/orders"
)

type (
	storage interface {
		GetOrder(ctx context.Context, criteria orders.GetCriteria) (*orders.Order, error)
		UpdateOrder(ctx context.Context, criteria orders.GetCriteria, params orders.UpdateParams) (*orders.Order, error)
	}

	catalogService interface {
		GetPlan(ctx context.Context, criteria catalog.GetPlanCriteria) (*catalog.Plan, error)
		GetProduct(ctx context.Context, criteria catalog.GetProductCriteria) (*catalog.Product, error)
		GetVariant(ctx context.Context, criteria catalog.GetVariantCriteria) (*catalog.Variant, error)
	}

	panelClient interface {
		FindUserByEmail(ctx context.Context, email string) (*pterodactyl.User, error)
		CreateUser(ctx context.Context, req pterodactyl.CreateUserRequest) (*pterodactyl.User, error)
		ListNodes(ctx context.Context) ([]pterodactyl.Node, error)
		ListFreeAllocations(ctx context.Context, nodeID int64) ([]pterodactyl.Allocation, error)
		CreateServer(ctx context.Context, req pterodactyl.CreateServerRequest) (*pterodactyl.Server, error)
	}
)
