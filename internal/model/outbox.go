package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "PENDING"
	// OutboxStatusProcessing marks an event claimed by one relay.
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusProcessed  OutboxStatus = "PROCESSED"
	OutboxStatusFailed     OutboxStatus = "FAILED"
)

// Event types written to the outbox by the appointment registry.
const (
	EventAppointmentCreated   = "appointment.created"
	EventAppointmentUpdated   = "appointment.updated"
	EventAppointmentCompleted = "appointment.completed"
	EventAppointmentCancelled = "appointment.cancelled"
	EventAppointmentDeleted   = "appointment.deleted"
	EventReportUploaded       = "report.uploaded"
	EventUserRegistered       = "user.registered"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"eventType"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"errorMessage,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retryCount"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	ClaimedAt    *time.Time      `db:"claimed_at" json:"claimedAt,omitempty"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processedAt,omitempty"`
}

func (e *OutboxEvent) Clone() *OutboxEvent {
	c := *e
	c.Payload = append(json.RawMessage(nil), e.Payload...)
	if e.ErrorMessage != nil {
		msg := *e.ErrorMessage
		c.ErrorMessage = &msg
	}
	if e.ClaimedAt != nil {
		t := *e.ClaimedAt
		c.ClaimedAt = &t
	}
	if e.ProcessedAt != nil {
		t := *e.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}
