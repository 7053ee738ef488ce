package provisionretry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"

	"blockhost/internal/stories/orders"
)

const (
	maxEventAttempts = 5
	eventBatchSize   = 50
	orderBatchSize   = 20

	// Orders and never-attempted events younger than this are likely
	// still in flight on the synchronous webhook path; leave them alone.
	pendingGracePeriod = 10 * time.Minute
)

// Worker retries failed webhook events and re-drives provisioning for
// orders that paid but never got a server.
type Worker struct {
	storage      Storage
	billing      BillingService
	provisioning ProvisioningService
	logger       *slog.Logger
	cron         *cron.Cron
	now          func() time.Time
}

// NewWorker creates a new provision retry worker
func NewWorker(
	storage Storage,
	billing BillingService,
	provisioning ProvisioningService,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		storage:      storage,
		billing:      billing,
		provisioning: provisioning,
		logger:       logger,
		cron:         cron.New(),
		now:          time.Now,
	}
}

// Name returns the worker name
func (w *Worker) Name() string {
	return "provision-retry"
}

// Start starts the provision retry worker
func (w *Worker) Start() error {
	// Runs every 5 minutes
	_, err := w.cron.AddFunc("*/5 * * * *", func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("Panic in provision retry worker", "panic", r)
			}
		}()
		ctx := context.Background()
		if err := w.run(ctx); err != nil {
			w.logger.Error("Provision retry worker failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule provision retry worker: %w", err)
	}

	w.cron.Start()
	return nil
}

// Stop stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping provision retry worker")
	w.cron.Stop()
}

func (w *Worker) run(ctx context.Context) error {
	if err := w.retryFailedEvents(ctx); err != nil {
		w.logger.Error("Failed to retry webhook events", "error", err)
	}
	return w.retryStuckOrders(ctx)
}

// retryFailedEvents re-drives stored webhook events that failed on a
// previous delivery and are still under the attempt cap, plus events
// whose handler never ran (recorded, then the process died before
// marking them) once they are past the grace period.
func (w *Worker) retryFailedEvents(ctx context.Context) error {
	events, err := w.storage.ListUnprocessedWebhookEvents(ctx, maxEventAttempts, eventBatchSize, w.now().Add(-pendingGracePeriod))
	if err != nil {
		return fmt.Errorf("list unprocessed webhook events: %w", err)
	}

	if len(events) == 0 {
		return nil
	}

	w.logger.Info("Retrying failed webhook events", "count", len(events))

	for _, event := range events {
		if err := w.billing.Reprocess(ctx, *event); err != nil {
			w.logger.Error("Failed to reprocess webhook event",
				"event_id", event.EventID,
				"event_type", event.EventType,
				"attempts", event.Attempts,
				"error", err)
		}
	}

	return nil
}

// retryStuckOrders finds paid orders that never got a panel server and
// drives provisioning for them again.
func (w *Worker) retryStuckOrders(ctx context.Context) error {
	cutoff := w.now().Add(-pendingGracePeriod)

	var stuck []*orders.Order
	for _, status := range []orders.Status{orders.StatusPending, orders.StatusFailed} {
		batch, err := w.storage.ListOrders(ctx, orders.ListCriteria{
			Status:             lo.ToPtr(status),
			CreatedBefore:      &cutoff,
			WithoutPanelServer: true,
			Limit:              orderBatchSize,
		})
		if err != nil {
			return fmt.Errorf("list stuck orders: %w", err)
		}
		stuck = append(stuck, batch...)
	}

	if len(stuck) == 0 {
		return nil
	}

	w.logger.Info("Retrying provisioning for stuck orders", "count", len(stuck))

	for _, order := range stuck {
		result, err := w.provisioning.ProvisionOrder(ctx, order.ID)
		if err != nil {
			w.logger.Error("Failed to provision stuck order",
				"order_id", order.ID,
				"display_id", order.DisplayID,
				"error", err)
			continue
		}

		w.logger.Info("Provisioned stuck order",
			"order_id", order.ID,
			"server_identifier", result.ServerIdentifier)
	}

	return nil
}
