package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"blockhost/internal/stories/orders"
)

const ordersTable = "orders"

var orderRowFields = fields(orderRow{})

type orderRow struct {
	ID                      string     `db:"id"`
	DisplayID               string     `db:"display_id"`
	UserID                  string     `db:"user_id"`
	UserEmail               string     `db:"user_email"`
	ProductID               *string    `db:"product_id"`
	ProductName             string     `db:"product_name"`
	PlanID                  *string    `db:"plan_id"`
	PlanName                string     `db:"plan_name"`
	VariantID               *string    `db:"variant_id"`
	VariantName             *string    `db:"variant_name"`
	Price                   float64    `db:"price"`
	Status                  string     `db:"status"`
	PanelServerID           *int64     `db:"pterodactyl_server_id"`
	PanelIdentifier         *string    `db:"pterodactyl_identifier"`
	StripeSubscriptionID    *string    `db:"stripe_subscription_id"`
	StripeCheckoutSessionID *string    `db:"stripe_checkout_session_id"`
	NextBillingDate         *time.Time `db:"next_billing_date"`
	CancelledAt             *time.Time `db:"cancelled_at"`
	CreatedAt               time.Time  `db:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at"`
}

func (r orderRow) ToModel() *orders.Order {
	return &orders.Order{
		ID:                      r.ID,
		DisplayID:               r.DisplayID,
		UserID:                  r.UserID,
		UserEmail:               r.UserEmail,
		ProductID:               r.ProductID,
		ProductName:             r.ProductName,
		PlanID:                  r.PlanID,
		PlanName:                r.PlanName,
		VariantID:               r.VariantID,
		VariantName:             r.VariantName,
		Price:                   r.Price,
		Status:                  orders.Status(r.Status),
		PanelServerID:           r.PanelServerID,
		PanelIdentifier:         r.PanelIdentifier,
		StripeSubscriptionID:    r.StripeSubscriptionID,
		StripeCheckoutSessionID: r.StripeCheckoutSessionID,
		NextBillingDate:         r.NextBillingDate,
		CancelledAt:             r.CancelledAt,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}
}

func (s *storageImpl) CreateOrder(ctx context.Context, order orders.Order) (*orders.Order, error) {
	id := order.ID
	if id == "" {
		id = uuid.NewString()
	}

	params := map[string]interface{}{
		"id": id,
		// Customers and support only ever see the display id.
		"display_id":                 sq.Expr("'ORD-' || nextval('order_display_id_seq')"),
		"user_id":                    order.UserID,
		"user_email":                 order.UserEmail,
		"product_id":                 order.ProductID,
		"product_name":               order.ProductName,
		"plan_id":                    order.PlanID,
		"plan_name":                  order.PlanName,
		"variant_id":                 order.VariantID,
		"variant_name":               order.VariantName,
		"price":                      order.Price,
		"status":                     string(order.Status),
		"pterodactyl_server_id":      order.PanelServerID,
		"pterodactyl_identifier":     order.PanelIdentifier,
		"stripe_subscription_id":     order.StripeSubscriptionID,
		"stripe_checkout_session_id": order.StripeCheckoutSessionID,
		"next_billing_date":          order.NextBillingDate,
		"cancelled_at":               order.CancelledAt,
		"created_at":                 s.now(),
		"updated_at":                 s.now(),
	}

	q, args, err := s.stmtBuilder().
		Insert(ordersTable).
		SetMap(params).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("db.ExecContext: %w", err)
	}

	return s.GetOrder(ctx, orders.GetCriteria{ID: &id})
}

func (s *storageImpl) GetOrder(ctx context.Context, criteria orders.GetCriteria) (*orders.Order, error) {
	query := s.stmtBuilder().
		Select(orderRowFields).
		From(ordersTable).
		Limit(1)

	if criteria.ID != nil {
		query = query.Where(sq.Eq{"id": *criteria.ID})
	}
	if criteria.DisplayID != nil {
		query = query.Where(sq.Eq{"display_id": *criteria.DisplayID})
	}
	if criteria.StripeSubscriptionID != nil {
		query = query.Where(sq.Eq{"stripe_subscription_id": *criteria.StripeSubscriptionID})
	}
	if criteria.StripeCheckoutSessionID != nil {
		query = query.Where(sq.Eq{"stripe_checkout_session_id": *criteria.StripeCheckoutSessionID})
	}
	if criteria.PanelIdentifier != nil {
		query = query.Where(sq.Eq{"pterodactyl_identifier": *criteria.PanelIdentifier})
	}

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var row orderRow
	if err := s.db.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.GetContext: %w", err)
	}

	return row.ToModel(), nil
}

func (s *storageImpl) ListOrders(ctx context.Context, criteria orders.ListCriteria) ([]*orders.Order, error) {
	query := s.stmtBuilder().
		Select(orderRowFields).
		From(ordersTable)

	if criteria.UserID != nil {
		query = query.Where(sq.Eq{"user_id": *criteria.UserID})
	}
	if criteria.Status != nil {
		query = query.Where(sq.Eq{"status": string(*criteria.Status)})
	}
	if criteria.CreatedBefore != nil {
		query = query.Where(sq.Lt{"created_at": *criteria.CreatedBefore})
	}
	if criteria.WithoutPanelServer {
		query = query.Where("pterodactyl_server_id IS NULL")
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

	var rows []orderRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext: %w", err)
	}

	result := make([]*orders.Order, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.ToModel())
	}
	return result, nil
}

func (s *storageImpl) UpdateOrder(ctx context.Context, criteria orders.GetCriteria, params orders.UpdateParams) (*orders.Order, error) {
	query := s.stmtBuilder().
		Update(ordersTable).
		Set("updated_at", s.now())

	if criteria.ID != nil {
		query = query.Where(sq.Eq{"id": *criteria.ID})
	}
	if criteria.DisplayID != nil {
		query = query.Where(sq.Eq{"display_id": *criteria.DisplayID})
	}
	if criteria.StripeSubscriptionID != nil {
		query = query.Where(sq.Eq{"stripe_subscription_id": *criteria.StripeSubscriptionID})
	}

	if params.Status != nil {
		query = query.Set("status", string(*params.Status))
	}
	if params.PanelServerID != nil {
		query = query.Set("pterodactyl_server_id", *params.PanelServerID)
	}
	if params.PanelIdentifier != nil {
		query = query.Set("pterodactyl_identifier", *params.PanelIdentifier)
	}
	if params.StripeSubscriptionID != nil {
		query = query.Set("stripe_subscription_id", *params.StripeSubscriptionID)
	}
	if params.NextBillingDate != nil {
		query = query.Set("next_billing_date", *params.NextBillingDate)
	}
	if params.CancelledAt != nil {
		query = query.Set("cancelled_at", *params.CancelledAt)
	}

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("db.ExecContext: %w", err)
	}

	return s.GetOrder(ctx, criteria)
}
