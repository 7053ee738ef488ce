package billing

import (
	"context"
	"time"

	"blockhost/internal/stories/catalog"
	"blockhost/internal/stories/orders"
	"blockhost/internal/stories/provisioning"
)

type (
	// Storage provides database operations for billing.
	Storage interface {
		InsertWebhookEvent(ctx context.Context, event WebhookEvent) (bool, error)
		MarkWebhookEventProcessed(ctx context.Context, provider, eventID string) error
		MarkWebhookEventFailed(ctx context.Context, provider, eventID, processingError string) error

		CreateOrder(ctx context.Context, order orders.Order) (*orders.Order, error)
		GetOrder(ctx context.Context, criteria orders.GetCriteria) (*orders.Order, error)
		UpdateOrder(ctx context.Context, criteria orders.GetCriteria, params orders.UpdateParams) (*orders.Order, error)

		CreateInvoice(ctx context.Context, invoice Invoice) (*Invoice, error)
		ListInvoices(ctx context.Context, criteria ListInvoicesCriteria) ([]*Invoice, error)

		GetCustomerUserID(ctx context.Context, stripeCustomerID string) (*string, error)
		UpsertCustomer(ctx context.Context, stripeCustomerID, userID string) error
	}

	// Catalog resolves the plan, product and variant a checkout refers to.
	Catalog interface {
		GetPlan(ctx context.Context, criteria catalog.GetPlanCriteria) (*catalog.Plan, error)
		GetProduct(ctx context.Context, criteria catalog.GetProductCriteria) (*catalog.Product, error)
		GetVariant(ctx context.Context, criteria catalog.GetVariantCriteria) (*catalog.Variant, error)
	}

	// BillingProvider resolves subscription details from the payment
	// processor.
	BillingProvider interface {
		SubscriptionPeriodEnd(ctx context.Context, subscriptionID string) (time.Time, error)
	}

	// Provisioner creates the panel server for a freshly paid order.
	Provisioner interface {
		ProvisionOrder(ctx context.Context, orderID string) (*provisioning.Result, error)
	}

	// OrderLifecycle is the slice of the orders service billing drives.
	OrderLifecycle interface {
		Cancel(ctx context.Context, orderID string) (*orders.Order, error)
	}

	// Panel exposes the suspend action used as a best-effort side
	// effect when a subscription is deleted.
	Panel interface {
		SuspendServer(ctx context.Context, serverID int64) error
	}
)
