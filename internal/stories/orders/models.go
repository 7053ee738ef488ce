package orders

import "time"

type Status string

const (
	StatusPending       Status = "pending"
	StatusProvisioning  Status = "provisioning"
	StatusActive        Status = "active"
	StatusSuspended     Status = "suspended"
	StatusPaymentFailed Status = "payment_failed"
	StatusCancelled     Status = "cancelled"
	StatusFailed        Status = "failed"
	StatusDeleted       Status = "deleted"
	StatusArchived      Status = "archived"
)

// Order is the record of one customer's purchased server instance. The
// internal ID is never shown to customers; DisplayID is.
type Order struct {
	ID        string
	DisplayID string
	UserID    string
	UserEmail string

	ProductID   *string
	ProductName string
	PlanID      *string
	PlanName    string
	VariantID   *string
	VariantName *string
	Price       float64

	Status Status

	PanelServerID   *int64
	PanelIdentifier *string

	StripeSubscriptionID    *string
	StripeCheckoutSessionID *string

	NextBillingDate *time.Time
	CancelledAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// allowedTransitions is the order lifecycle. Admin override bypasses it.
var allowedTransitions = map[Status][]Status{
	StatusPending:       {StatusProvisioning, StatusActive, StatusFailed, StatusCancelled},
	StatusProvisioning:  {StatusActive, StatusFailed, StatusCancelled},
	StatusActive:        {StatusSuspended, StatusPaymentFailed, StatusCancelled},
	StatusSuspended:     {StatusActive, StatusCancelled},
	StatusPaymentFailed: {StatusActive, StatusSuspended, StatusCancelled},
	StatusFailed:        {StatusActive, StatusCancelled},
}

// CanTransition reports whether the lifecycle permits moving from one
// status to another.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status may only be left by an explicit
// admin action. Webhook-driven transitions never resurrect these.
func IsTerminal(s Status) bool {
	switch s {
	case StatusCancelled, StatusDeleted, StatusArchived:
		return true
	}
	return false
}

type GetCriteria struct {
	ID                      *string
	DisplayID               *string
	StripeSubscriptionID    *string
	StripeCheckoutSessionID *string
	PanelIdentifier         *string
}

type ListCriteria struct {
	UserID             *string
	Status             *Status
	CreatedBefore      *time.Time
	WithoutPanelServer bool
	Limit              int
	Offset             int
}

type UpdateParams struct {
	Status               *Status
	PanelServerID        *int64
	PanelIdentifier      *string
	StripeSubscriptionID *string
	NextBillingDate      *time.Time
	CancelledAt          *time.Time
}
