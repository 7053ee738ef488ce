package billing

import (
	"encoding/json"
	"time"
)

// Event is one verified webhook delivery from the payment processor.
type Event struct {
	ID      string
	Type    string
	Payload json.RawMessage
}

const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventInvoicePaid         = "invoice.paid"
	EventInvoiceFailed       = "invoice.payment_failed"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventSubscriptionUpdated = "customer.subscription.updated"
)

// WebhookEvent is the stored delivery record. The (provider, event id)
// pair is unique in the database, which is what makes redelivery
// idempotent.
type WebhookEvent struct {
	ID              int64
	Provider        string
	EventID         string
	EventType       string
	Payload         []byte
	ProcessedAt     *time.Time
	ProcessingError *string
	Attempts        int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type InvoiceStatus string

const (
	InvoicePaid   InvoiceStatus = "paid"
	InvoiceOpen   InvoiceStatus = "open"
	InvoiceFailed InvoiceStatus = "failed"
)

// Invoice records one billing event. OrderID is nullable; an invoice
// may arrive before its order linkage can be resolved.
type Invoice struct {
	ID      string
	OrderID *string
	UserID  *string

	StripeInvoiceID      string
	StripeSubscriptionID *string

	Amount   float64
	Currency string
	Status   InvoiceStatus

	PDFURL    *string
	HostedURL *string

	PeriodStart *time.Time
	PeriodEnd   *time.Time
	CreatedAt   time.Time
}

type ListInvoicesCriteria struct {
	UserID  *string
	OrderID *string
	Limit   int
	Offset  int
}

// Wire shapes parsed out of raw event payloads. Local structs rather
// than SDK types so API-version field moves (e.g. the invoice
// subscription reference moving under parent.subscription_details)
// stay contained here.

type checkoutSessionPayload struct {
	ID           string            `json:"id"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

type invoicePayload struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	AmountPaid       int64  `json:"amount_paid"`
	Currency         string `json:"currency"`
	InvoicePDF       string `json:"invoice_pdf"`
	HostedInvoiceURL string `json:"hosted_invoice_url"`
	PeriodStart      int64  `json:"period_start"`
	PeriodEnd        int64  `json:"period_end"`
}

func (p invoicePayload) subscriptionID() string {
	if p.Parent.SubscriptionDetails.Subscription != "" {
		return p.Parent.SubscriptionDetails.Subscription
	}
	return p.Subscription
}

type subscriptionPayload struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	Items            struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

func (p subscriptionPayload) periodEnd() *time.Time {
	end := p.CurrentPeriodEnd
	if end == 0 {
		for _, item := range p.Items.Data {
			if item.CurrentPeriodEnd > 0 {
				end = item.CurrentPeriodEnd
				break
			}
		}
	}
	if end == 0 {
		return nil
	}
	t := time.Unix(end, 0).UTC()
	return &t
}
