package catalog

import "context"

type (
	// Storage provides database operations for the catalog.
	Storage interface {
		GetPlan(ctx context.Context, criteria GetPlanCriteria) (*Plan, error)
		GetProduct(ctx context.Context, criteria GetProductCriteria) (*Product, error)
		GetVariant(ctx context.Context, criteria GetVariantCriteria) (*Variant, error)
	}
)
