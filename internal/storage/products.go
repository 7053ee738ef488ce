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

const productsTable = "products"

var productRowFields = fields(productRow{})

type productRow struct {
	ID              string    `db:"id"`
	Name            string    `db:"name"`
	Category        string    `db:"category"`
	GameID          string    `db:"game_id"`
	EggID           *int64    `db:"egg_id"`
	NestID          *int64    `db:"nest_id"`
	DockerImage     *string   `db:"docker_image"`
	StartupCommand  *string   `db:"startup_command"`
	StripeProductID *string   `db:"stripe_product_id"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r productRow) ToModel() *catalog.Product {
	return &catalog.Product{
		ID:              r.ID,
		Name:            r.Name,
		Category:        r.Category,
		GameID:          r.GameID,
		EggID:           r.EggID,
		NestID:          r.NestID,
		DockerImage:     r.DockerImage,
		StartupCommand:  r.StartupCommand,
		StripeProductID: r.StripeProductID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (s *storageImpl) GetProduct(ctx context.Context, criteria catalog.GetProductCriteria) (*catalog.Product, error) {
	query := s.stmtBuilder().
		Select(productRowFields).
		From(productsTable).
		Limit(1)

	if criteria.ID != nil {
		query = query.Where(sq.Eq{"id": *criteria.ID})
	}

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var row productRow
	if err := s.db.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.GetContext: %w", err)
	}

	return row.ToModel(), nil
}
