package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

const customersTable = "customers"

type customerRow struct {
	StripeCustomerID string `db:"stripe_customer_id"`
	UserID           string `db:"user_id"`
}

// GetCustomerUserID maps a payment-processor customer id onto the user
// who owns it. Returns nil, nil when no mapping exists.
func (s *storageImpl) GetCustomerUserID(ctx context.Context, stripeCustomerID string) (*string, error) {
	q, args, err := s.stmtBuilder().
		Select("user_id").
		From(customersTable).
		Where(sq.Eq{"stripe_customer_id": stripeCustomerID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var userID string
	if err := s.db.GetContext(ctx, &userID, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.GetContext: %w", err)
	}

	return &userID, nil
}

func (s *storageImpl) UpsertCustomer(ctx context.Context, stripeCustomerID, userID string) error {
	q, args, err := s.stmtBuilder().
		Insert(customersTable).
		SetMap(map[string]interface{}{
			"stripe_customer_id": stripeCustomerID,
			"user_id":            userID,
			"created_at":         s.now(),
		}).
		Suffix("ON CONFLICT (stripe_customer_id) DO UPDATE SET user_id = EXCLUDED.user_id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("db.ExecContext: %w", err)
	}

	return nil
}
