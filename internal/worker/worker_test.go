package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-portal/internal/email"
	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository/memory"
	"github.com/jwalitptl/clinic-portal/pkg/messaging"
)

func envelope(t *testing.T, eventType string, payload interface{}) messaging.Envelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return messaging.Envelope{ID: uuid.New(), Type: eventType, Payload: raw}
}

func TestNotifierRendersAppointmentEmails(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	patient := &model.User{Email: "patient@demo.com", Name: "John Smith", Role: model.RolePatient}
	require.NoError(t, users.Create(ctx, patient))

	sender := &email.LogSender{Logger: zerolog.Nop()}
	n := NewNotifier(users, sender, "Demo Clinic", nil)

	appointment := &model.Appointment{
		ID: 1, PatientID: patient.ID, DoctorName: "Dr. Sarah Johnson",
		Date: "2024-06-01", TimeSlot: "9:00 AM", Service: "Follow-up",
		Notes: "Rest well",
	}
	require.NoError(t, n.Handle(ctx, envelope(t, model.EventAppointmentCreated, appointment)))
	require.NoError(t, n.Handle(ctx, envelope(t, model.EventAppointmentCompleted, appointment)))
	require.NoError(t, n.Handle(ctx, envelope(t, model.EventAppointmentUpdated, appointment)))
	require.NoError(t, n.Handle(ctx, envelope(t, model.EventUserRegistered, patient)))

	sent := sender.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "patient@demo.com", sent[0].To)
	assert.Equal(t, "Appointment confirmed", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "2024-06-01 at 9:00 AM with Dr. Sarah Johnson")
	assert.Contains(t, sent[1].Body, "Rest well")
	assert.Equal(t, "Welcome to Demo Clinic", sent[2].Subject)
}

func TestNotifierUnknownPatient(t *testing.T) {
	n := NewNotifier(memory.NewUserRepository(), &email.LogSender{Logger: zerolog.Nop()}, "Demo Clinic", nil)
	err := n.Handle(context.Background(), envelope(t, model.EventAppointmentCreated, &model.Appointment{PatientID: 9}))
	assert.Error(t, err)
}

func TestOutboxCleanup(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOutboxRepository()
	old := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	delivered := &model.OutboxEvent{EventType: "a", Payload: []byte(`{}`), CreatedAt: old}
	pending := &model.OutboxEvent{EventType: "b", Payload: []byte(`{}`), CreatedAt: old}
	require.NoError(t, repo.Create(ctx, delivered))
	require.NoError(t, repo.Create(ctx, pending))
	require.NoError(t, repo.UpdateStatus(ctx, delivered.ID, model.OutboxStatusProcessed, nil))

	w := NewOutboxCleanupWorker(repo, 24*time.Hour, time.Hour, nil)
	w.now = func() time.Time { return old.Add(48 * time.Hour) }

	removed, err := w.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	left, err := repo.GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "b", left[0].EventType)
}
