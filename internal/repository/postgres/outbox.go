package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()
	event.Status = model.OutboxStatusPending

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		[]byte(event.Payload),
		event.Status,
		event.CreatedAt,
	)
	return translateError(err, "create outbox event")
}

const outboxColumns = `id, event_type, payload, status, error_message, retry_count, created_at, claimed_at, processed_at`

func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_events
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	events := make([]*model.OutboxEvent, 0)
	if err := r.db.SelectContext(ctx, &events, query, model.OutboxStatusPending, limit); err != nil {
		return nil, translateError(err, "get pending events")
	}
	return events, nil
}

// ClaimPendingEvents selects and marks the batch in one statement; SKIP LOCKED
// keeps a concurrent claim from blocking on or returning the same rows.
func (r *outboxRepository) ClaimPendingEvents(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	query := `
		UPDATE outbox_events
		SET status = $1, claimed_at = now()
		WHERE id IN (
			SELECT id
			FROM outbox_events
			WHERE status = $2
				OR (status = $1 AND claimed_at < now() - make_interval(secs => $3))
			ORDER BY created_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns
	events := make([]*model.OutboxEvent, 0)
	err := r.db.SelectContext(ctx, &events, query,
		model.OutboxStatusProcessing,
		model.OutboxStatusPending,
		lease.Seconds(),
		limit,
	)
	if err != nil {
		return nil, translateError(err, "claim pending events")
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	return events, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	query := `
		UPDATE outbox_events
		SET status = $1,
			error_message = $2,
			retry_count = retry_count + CASE WHEN $2::text IS NULL THEN 0 ELSE 1 END,
			processed_at = CASE WHEN $1 = 'PROCESSED' THEN now() ELSE processed_at END
		WHERE id = $3
	`
	result, err := r.db.ExecContext(ctx, query, status, errMsg, id)
	if err != nil {
		return translateError(err, "update outbox event status")
	}
	return checkAffected(result)
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM outbox_events WHERE status = $1 AND created_at < $2`,
		model.OutboxStatusProcessed, cutoff,
	)
	if err != nil {
		return 0, translateError(err, "purge outbox events")
	}
	return result.RowsAffected()
}
