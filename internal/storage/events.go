package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"blockhost/internal/stories/billing"
)

const webhookEventsTable = "webhook_events"

var webhookEventRowFields = fields(webhookEventRow{})

type webhookEventRow struct {
	ID              int64      `db:"id"`
	Provider        string     `db:"provider"`
	EventID         string     `db:"event_id"`
	EventType       string     `db:"event_type"`
	Payload         []byte     `db:"payload"`
	ProcessedAt     *time.Time `db:"processed_at"`
	ProcessingError *string    `db:"processing_error"`
	Attempts        int        `db:"attempts"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func (r webhookEventRow) ToModel() *billing.WebhookEvent {
	return &billing.WebhookEvent{
		ID:              r.ID,
		Provider:        r.Provider,
		EventID:         r.EventID,
		EventType:       r.EventType,
		Payload:         r.Payload,
		ProcessedAt:     r.ProcessedAt,
		ProcessingError: r.ProcessingError,
		Attempts:        r.Attempts,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// InsertWebhookEvent records a delivery. The unique (provider, event_id)
// index makes the insert a no-op for redeliveries; the returned bool is
// false when the event was already known.
func (s *storageImpl) InsertWebhookEvent(ctx context.Context, event billing.WebhookEvent) (bool, error) {
	now := s.now()

	q, args, err := s.stmtBuilder().
		Insert(webhookEventsTable).
		SetMap(map[string]interface{}{
			"provider":   event.Provider,
			"event_id":   event.EventID,
			"event_type": event.EventType,
			"payload":    event.Payload,
			"attempts":   0,
			"created_at": now,
			"updated_at": now,
		}).
		Suffix("ON CONFLICT (provider, event_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build sql query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("db.ExecContext: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("res.RowsAffected: %w", err)
	}

	return affected > 0, nil
}

func (s *storageImpl) MarkWebhookEventProcessed(ctx context.Context, provider, eventID string) error {
	now := s.now()

	q, args, err := s.stmtBuilder().
		Update(webhookEventsTable).
		Set("processed_at", now).
		Set("processing_error", nil).
		Set("attempts", sq.Expr("attempts + 1")).
		Set("updated_at", now).
		Where(sq.Eq{"provider": provider, "event_id": eventID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("db.ExecContext: %w", err)
	}

	return nil
}

func (s *storageImpl) MarkWebhookEventFailed(ctx context.Context, provider, eventID, processingError string) error {
	q, args, err := s.stmtBuilder().
		Update(webhookEventsTable).
		Set("processing_error", processingError).
		Set("attempts", sq.Expr("attempts + 1")).
		Set("updated_at", s.now()).
		Where(sq.Eq{"provider": provider, "event_id": eventID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("db.ExecContext: %w", err)
	}

	return nil
}

// ListUnprocessedWebhookEvents returns deliveries still under the
// attempt cap that need another run, oldest first, for the retry
// worker. Besides failed deliveries this includes rows that were never
// attempted and are older than orphanedBefore: the insert committed but
// the process died before either mark ran, and redelivery is swallowed
// by the duplicate check, so the worker is the only path left.
func (s *storageImpl) ListUnprocessedWebhookEvents(ctx context.Context, maxAttempts, limit int, orphanedBefore time.Time) ([]*billing.WebhookEvent, error) {
	query := s.stmtBuilder().
		Select(webhookEventRowFields).
		From(webhookEventsTable).
		Where(sq.Eq{"processed_at": nil}).
		Where(sq.Lt{"attempts": maxAttempts}).
		Where(sq.Or{sq.Gt{"attempts": 0}, sq.Lt{"created_at": orphanedBefore}}).
		OrderBy("created_at ASC")

	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var rows []webhookEventRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext: %w", err)
	}

	result := make([]*billing.WebhookEvent, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.ToModel())
	}
	return result, nil
}
