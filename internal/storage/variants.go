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

const variantsTable = "variants"

var variantRowFields = fields(variantRow{})

type variantRow struct {
	ID             string    `db:"id"`
	ProductID      string    `db:"product_id"`
	Name           string    `db:"name"`
	EggID          *int64    `db:"egg_id"`
	NestID         *int64    `db:"nest_id"`
	DockerImage    *string   `db:"docker_image"`
	StartupCommand *string   `db:"startup_command"`
	Version        *string   `db:"version"`
	IsDefault      bool      `db:"is_default"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r variantRow) ToModel() *catalog.Variant {
	return &catalog.Variant{
		ID:             r.ID,
		ProductID:      r.ProductID,
		Name:           r.Name,
		EggID:          r.EggID,
		NestID:         r.NestID,
		DockerImage:    r.DockerImage,
		StartupCommand: r.StartupCommand,
		Version:        r.Version,
		IsDefault:      r.IsDefault,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (s *storageImpl) GetVariant(ctx context.Context, criteria catalog.GetVariantCriteria) (*catalog.Variant, error) {
	query := s.stmtBuilder().
		Select(variantRowFields).
		From(variantsTable).
		Limit(1)

	if criteria.ID != nil {
		query = query.Where(sq.Eq{"id": *criteria.ID})
	}
	if criteria.DefaultOfProduct != nil {
		query = query.Where(sq.Eq{"product_id": *criteria.DefaultOfProduct, "is_default": true})
	}

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var row variantRow
	if err := s.db.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.GetContext: %w", err)
	}

	return row.ToModel(), nil
}
