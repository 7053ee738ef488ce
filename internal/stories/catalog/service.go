package catalog

import (
	"context"

	"github.com/pkg/errors"
)

type Service struct {
	storage Storage
}

func NewService(storage Storage) *Service {
	return &Service{
		storage: storage,
	}
}

func (s *Service) GetPlan(ctx context.Context, criteria GetPlanCriteria) (*Plan, error) {
	plan, err := s.storage.GetPlan(ctx, criteria)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get plan from storage")
	}
	return plan, nil
}

func (s *Service) GetProduct(ctx context.Context, criteria GetProductCriteria) (*Product, error) {
	product, err := s.storage.GetProduct(ctx, criteria)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get product from storage")
	}
	return product, nil
}

func (s *Service) GetVariant(ctx context.Context, criteria GetVariantCriteria) (*Variant, error) {
	variant, err := s.storage.GetVariant(ctx, criteria)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get variant from storage")
	}
	return variant, nil
}
