package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"blockhost/internal/stories/catalog"
)

const plansTable = "plans"

var planRowFields = fields(planRow{})

type planRow struct {
	ID            string    `db:"id"`
	ProductID     string    `db:"product_id"`
	Name          string    `db:"name"`
	Price         float64   `db:"price"`
	RAM           int64     `db:"ram"`
	CPU           int64     `db:"cpu"`
	Disk          int64     `db:"disk"`
	Databases     int64     `db:"databases"`
	Backups       int64     `db:"backups"`
	StripePriceID *string   `db:"stripe_price_id"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r planRow) ToModel() *catalog.Plan {
	return &catalog.Plan{
		ID:            r.ID,
		ProductID:     r.ProductID,
		Name:          r.Name,
		Price:         r.Price,
		RAM:           r.RAM,
		CPU:           r.CPU,
		Disk:          r.Disk,
		Databases:     r.Databases,
		Backups:       r.Backups,
		StripePriceID: r.StripePriceID,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (s *storageImpl) GetPlan(ctx context.Context, criteria catalog.GetPlanCriteria) (*catalog.Plan, error) {
	query := s.stmtBuilder().
		Select(planRowFields).
		From(plansTable).
		Limit(1)

	if criteria.ID != nil {
		query = query.Where(sq.Eq{"id": *criteria.ID})
	}
	if criteria.StripePriceID != nil {
		query = query.Where(sq.Eq{"stripe_price_id": *criteria.StripePriceID})
	}

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var row planRow
	if err := s.db.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.GetContext: %w", err)
	}

	return row.ToModel(), nil
}
