package provisionretry

import (
	"context"
	"time"

	"blockhost/internal/stories/billing"
	"blockhost/internal/stories/orders"
	"blockhost/internal/stories/provisioning"
)

type (
	// Storage provides database operations
	Storage interface {
		ListUnprocessedWebhookEvents(ctx context.Context, maxAttempts, limit int, orphanedBefore time.Time) ([]*billing.WebhookEvent, error)
		ListOrders(ctx context.Context, criteria orders.ListCriteria) ([]*orders.Order, error)
	}

	// BillingService re-drives stored webhook events
	BillingService interface {
		Reprocess(ctx context.Context, record billing.WebhookEvent) error
	}

	// ProvisioningService retries server creation for stuck orders
	ProvisioningService interface {
		ProvisionOrder(ctx context.Context, orderID string) (*provisioning.Result, error)
	}
)
