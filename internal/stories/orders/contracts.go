package orders

import "context"

type (
	// Storage provides database operations for orders.
	Storage interface {
		GetOrder(ctx context.Context, criteria GetCriteria) (*Order, error)
		ListOrders(ctx context.Context, criteria ListCriteria) ([]*Order, error)
		UpdateOrder(ctx context.Context, criteria GetCriteria, params UpdateParams) (*Order, error)
	}

	// Panel provides the game-panel suspend and unsuspend actions.
	Panel interface {
		SuspendServer(ctx context.Context, serverID int64) error
		UnsuspendServer(ctx context.Context, serverID int64) error
	}
)
