// Package event records domain events in the transactional outbox.
package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository"
)

// Publisher records a domain event for later delivery.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

type OutboxPublisher struct {
	repo repository.OutboxRepository
}

func NewOutboxPublisher(repo repository.OutboxRepository) *OutboxPublisher {
	return &OutboxPublisher{repo: repo}
}

func (p *OutboxPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	if err := p.repo.Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   raw,
		Status:    model.OutboxStatusPending,
	}); err != nil {
		return fmt.Errorf("failed to record %s event: %w", eventType, err)
	}
	return nil
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, string, interface{}) error { return nil }
