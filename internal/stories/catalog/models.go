package catalog

import "time"

// Product is a sellable catalog entry. GameID keys the built-in
// provisioning presets; the egg/nest/docker/startup fields are optional
// product-level overrides of those presets.
type Product struct {
	ID       string
	Name     string
	Category string
	GameID   string

	EggID          *int64
	NestID         *int64
	DockerImage    *string
	StartupCommand *string

	StripeProductID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Plan is a priced resource bundle belonging to a product. RAM and Disk
// are MB, CPU is percent (100 = one core).
type Plan struct {
	ID        string
	ProductID string
	Name      string
	Price     float64

	RAM       int64
	CPU       int64
	Disk      int64
	Databases int64
	Backups   int64

	StripePriceID *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Variant is an optional provisioning-configuration override for a
// product, e.g. "Vanilla" vs "PaperMC". At most one variant per product
// is the default.
type Variant struct {
	ID        string
	ProductID string
	Name      string

	EggID          *int64
	NestID         *int64
	DockerImage    *string
	StartupCommand *string
	Version        *string

	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type GetPlanCriteria struct {
	ID            *string
	StripePriceID *string
}

type GetProductCriteria struct {
	ID *string
}

type GetVariantCriteria struct {
	ID               *string
	DefaultOfProduct *string
}
