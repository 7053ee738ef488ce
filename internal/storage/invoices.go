package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"blockhost/internal/stories/billing"
)

const invoicesTable = "invoices"

var invoiceRowFields = fields(invoiceRow{})

type invoiceRow struct {
	ID                   string     `db:"id"`
	OrderID              *string    `db:"order_id"`
	UserID               *string    `db:"user_id"`
	StripeInvoiceID      string     `db:"stripe_invoice_id"`
	StripeSubscriptionID *string    `db:"stripe_subscription_id"`
	Amount               float64    `db:"amount"`
	Currency             string     `db:"currency"`
	Status               string     `db:"status"`
	PDFURL               *string    `db:"pdf_url"`
	HostedURL            *string    `db:"hosted_url"`
	PeriodStart          *time.Time `db:"period_start"`
	PeriodEnd            *time.Time `db:"period_end"`
	CreatedAt            time.Time  `db:"created_at"`
}

func (r invoiceRow) ToModel() *billing.Invoice {
	return &billing.Invoice{
		ID:                   r.ID,
		OrderID:              r.OrderID,
		UserID:               r.UserID,
		StripeInvoiceID:      r.StripeInvoiceID,
		StripeSubscriptionID: r.StripeSubscriptionID,
		Amount:               r.Amount,
		Currency:             r.Currency,
		Status:               billing.InvoiceStatus(r.Status),
		PDFURL:               r.PDFURL,
		HostedURL:            r.HostedURL,
		PeriodStart:          r.PeriodStart,
		PeriodEnd:            r.PeriodEnd,
		CreatedAt:            r.CreatedAt,
	}
}

// CreateInvoice records an invoice. Inserting the same external invoice
// id twice is a silent no-op; the existing row is returned.
func (s *storageImpl) CreateInvoice(ctx context.Context, invoice billing.Invoice) (*billing.Invoice, error) {
	id := invoice.ID
	if id == "" {
		id = uuid.NewString()
	}

	params := map[string]interface{}{
		"id":                     id,
		"order_id":               invoice.OrderID,
		"user_id":                invoice.UserID,
		"stripe_invoice_id":      invoice.StripeInvoiceID,
		"stripe_subscription_id": invoice.StripeSubscriptionID,
		"amount":                 invoice.Amount,
		"currency":               invoice.Currency,
		"status":                 string(invoice.Status),
		"pdf_url":                invoice.PDFURL,
		"hosted_url":             invoice.HostedURL,
		"period_start":           invoice.PeriodStart,
		"period_end":             invoice.PeriodEnd,
		"created_at":             s.now(),
	}

	q, args, err := s.stmtBuilder().
		Insert(invoicesTable).
		SetMap(params).
		Suffix("ON CONFLICT (stripe_invoice_id) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("db.ExecContext: %w", err)
	}

	return s.getInvoiceByStripeID(ctx, invoice.StripeInvoiceID)
}

func (s *storageImpl) getInvoiceByStripeID(ctx context.Context, stripeInvoiceID string) (*billing.Invoice, error) {
	q, args, err := s.stmtBuilder().
		Select(invoiceRowFields).
		From(invoicesTable).
		Where(sq.Eq{"stripe_invoice_id": stripeInvoiceID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var row invoiceRow
	if err := s.db.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.GetContext: %w", err)
	}

	return row.ToModel(), nil
}

func (s *storageImpl) ListInvoices(ctx context.Context, criteria billing.ListInvoicesCriteria) ([]*billing.Invoice, error) {
	query := s.stmtBuilder().
		Select(invoiceRowFields).
		From(invoicesTable)

	if criteria.UserID != nil {
		query = query.Where(sq.Eq{"user_id": *criteria.UserID})
	}
	if criteria.OrderID != nil {
		query = query.Where(sq.Eq{"order_id": *criteria.OrderID})
	}

	if criteria.Limit > 0 {
		query = query.Limit(uint64(criteria.Limit))
	}
	if criteria.Offset > 0 {
		query = query.Offset(uint64(criteria.Offset))
	}

	query = query.OrderBy("created_at DESC")

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var rows []invoiceRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext: %w", err)
	}

	result := make([]*billing.Invoice, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.ToModel())
	}
	return result, nil
}
