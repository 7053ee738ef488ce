package orders

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Service provides order lifecycle operations.
type Service struct {
	storage Storage
	panel   Panel
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(storage Storage, panel Panel, logger *slog.Logger, now func() time.Time) *Service {
	return &Service{
		storage: storage,
		panel:   panel,
		logger:  logger,
		now:     now,
	}
}

func (s *Service) GetOrder(ctx context.Context, criteria GetCriteria) (*Order, error) {
	order, err := s.storage.GetOrder(ctx, criteria)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get order from storage")
	}
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context, criteria ListCriteria) ([]*Order, error) {
	list, err := s.storage.ListOrders(ctx, criteria)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list orders from storage")
	}
	return list, nil
}

// Suspend pauses an order's server. Orders that carry a panel server id
// are suspended on the panel first; the database status flips only after
// the external call succeeds. Orders without a provisioned instance get
// a pure status update.
func (s *Service) Suspend(ctx context.Context, orderID string) (*Order, error) {
	return s.setSuspension(ctx, orderID, true)
}

// Reactivate resumes a suspended order, unsuspending the panel server
// when one exists.
func (s *Service) Reactivate(ctx context.Context, orderID string) (*Order, error) {
	return s.setSuspension(ctx, orderID, false)
}

func (s *Service) setSuspension(ctx context.Context, orderID string, suspend bool) (*Order, error) {
	order, err := s.storage.GetOrder(ctx, GetCriteria{ID: &orderID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get order")
	}
	if order == nil {
		return nil, errors.Errorf("order not found: %s", orderID)
	}

	target := StatusSuspended
	if !suspend {
		target = StatusActive
	}

	if !CanTransition(order.Status, target) {
		return nil, errors.Errorf("order %s cannot move from %s to %s", order.DisplayID, order.Status, target)
	}

	if order.PanelServerID != nil {
		if suspend {
			err = s.panel.SuspendServer(ctx, *order.PanelServerID)
		} else {
			err = s.panel.UnsuspendServer(ctx, *order.PanelServerID)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "panel call failed for order %s", order.DisplayID)
		}
	} else {
		s.logger.Info("order has no panel server, updating status only",
			"order", order.DisplayID,
			"target_status", target)
	}

	updated, err := s.storage.UpdateOrder(ctx, GetCriteria{ID: &orderID}, UpdateParams{Status: &target})
	if err != nil {
		return nil, errors.Wrap(err, "failed to update order status")
	}

	s.logger.Info("order suspension state changed",
		"order", updated.DisplayID,
		"status", updated.Status)

	return updated, nil
}

// Cancel moves an order to cancelled and stamps cancelled_at exactly
// once. Cancelling an already cancelled order is a no-op.
func (s *Service) Cancel(ctx context.Context, orderID string) (*Order, error) {
	order, err := s.storage.GetOrder(ctx, GetCriteria{ID: &orderID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get order")
	}
	if order == nil {
		return nil, errors.Errorf("order not found: %s", orderID)
	}

	if order.Status == StatusCancelled {
		return order, nil
	}

	params := UpdateParams{Status: lo.ToPtr(StatusCancelled)}
	if order.CancelledAt == nil {
		params.CancelledAt = lo.ToPtr(s.now())
	}

	updated, err := s.storage.UpdateOrder(ctx, GetCriteria{ID: &orderID}, params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to cancel order")
	}

	s.logger.Info("order cancelled", "order", updated.DisplayID)
	return updated, nil
}

// AdminOverride sets an order status without lifecycle validation. It
// exists as an escape hatch for support tooling and is always logged.
func (s *Service) AdminOverride(ctx context.Context, orderID string, status Status) (*Order, error) {
	order, err := s.storage.GetOrder(ctx, GetCriteria{ID: &orderID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get order")
	}
	if order == nil {
		return nil, errors.Errorf("order not found: %s", orderID)
	}

	s.logger.Warn("admin status override",
		"order", order.DisplayID,
		"from", order.Status,
		"to", status)

	params := UpdateParams{Status: &status}
	if status == StatusCancelled && order.CancelledAt == nil {
		params.CancelledAt = lo.ToPtr(s.now())
	}

	updated, err := s.storage.UpdateOrder(ctx, GetCriteria{ID: &orderID}, params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to override order status")
	}
	return updated, nil
}
