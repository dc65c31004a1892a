package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository"
)

type outboxRepository struct {
	mu     sync.RWMutex
	events map[uuid.UUID]*model.OutboxEvent
}

func NewOutboxRepository() repository.OutboxRepository {
	return &outboxRepository{events: make(map[uuid.UUID]*model.OutboxEvent)}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Status == "" {
		event.Status = model.OutboxStatusPending
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	r.events[event.ID] = event.Clone()
	return nil
}

// GetPendingEvents returns the oldest pending events first.
func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	pending := make([]*model.OutboxEvent, 0)
	for _, e := range r.events {
		if e.Status == model.OutboxStatusPending {
			pending = append(pending, e.Clone())
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// ClaimPendingEvents marks the oldest pending events PROCESSING under the
// write lock and returns them.
func (r *outboxRepository) ClaimPendingEvents(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	claimable := make([]*model.OutboxEvent, 0)
	for _, e := range r.events {
		switch {
		case e.Status == model.OutboxStatusPending:
		case e.Status == model.OutboxStatusProcessing && e.ClaimedAt != nil && now.Sub(*e.ClaimedAt) > lease:
		default:
			continue
		}
		claimable = append(claimable, e)
	}
	sort.Slice(claimable, func(i, j int) bool { return claimable[i].CreatedAt.Before(claimable[j].CreatedAt) })
	if limit > 0 && len(claimable) > limit {
		claimable = claimable[:limit]
	}

	claimed := make([]*model.OutboxEvent, 0, len(claimable))
	for _, e := range claimable {
		e.Status = model.OutboxStatusProcessing
		claimedAt := now
		e.ClaimedAt = &claimedAt
		claimed = append(claimed, e.Clone())
	}
	return claimed, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[id]
	if !ok {
		return repository.ErrNotFound
	}

	event.Status = status
	event.ErrorMessage = errMsg
	if errMsg != nil {
		event.RetryCount++
	}
	if status == model.OutboxStatusProcessed {
		now := time.Now()
		event.ProcessedAt = &now
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, e := range r.events {
		if e.Status == model.OutboxStatusProcessed && e.CreatedAt.Before(cutoff) {
			delete(r.events, id)
			removed++
		}
	}
	return removed, nil
}
