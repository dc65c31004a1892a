package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/clinic-portal/internal/email"
	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository"
	"github.com/jwalitptl/clinic-portal/pkg/logger"
	"github.com/jwalitptl/clinic-portal/pkg/messaging"
)

// NotifiedEvents are the event types the notifier emails patients about.
var NotifiedEvents = []string{
	model.EventUserRegistered,
	model.EventAppointmentCreated,
	model.EventAppointmentCancelled,
	model.EventAppointmentCompleted,
}

// Notifier turns relayed domain events into patient emails.
type Notifier struct {
	users  repository.UserRepository
	sender email.Sender
	logger *logger.Logger
	clinic string
}

func NewNotifier(users repository.UserRepository, sender email.Sender, clinicName string, log *logger.Logger) *Notifier {
	if log == nil {
		log = logger.Nop()
	}
	return &Notifier{users: users, sender: sender, logger: log.With("notifier"), clinic: clinicName}
}

// Run consumes events from broker until ctx is done.
func (n *Notifier) Run(ctx context.Context, broker messaging.Broker) error {
	channels := make([]string, 0, len(NotifiedEvents))
	for _, eventType := range NotifiedEvents {
		channels = append(channels, messaging.Channel(eventType))
	}
	n.logger.Info("Starting notifier", "channels", len(channels))
	return messaging.Consume(ctx, broker, channels, n.Handle, n.logger.Zerolog())
}

func (n *Notifier) Handle(ctx context.Context, env messaging.Envelope) error {
	msg, err := n.render(ctx, env)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}
	if err := n.sender.Send(ctx, *msg); err != nil {
		return err
	}
	n.logger.Debug("Notification sent", "event_type", env.Type, "event_id", env.ID.String())
	return nil
}

func (n *Notifier) render(ctx context.Context, env messaging.Envelope) (*email.Message, error) {
	if env.Type == model.EventUserRegistered {
		var u model.User
		if err := json.Unmarshal(env.Payload, &u); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", env.Type, err)
		}
		return &email.Message{
			To:      u.Email,
			Subject: fmt.Sprintf("Welcome to %s", n.clinic),
			Body:    fmt.Sprintf("Hello %s,\n\nYour patient account is ready. You can now book appointments online.\n", u.Name),
		}, nil
	}

	var a model.Appointment
	if err := json.Unmarshal(env.Payload, &a); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", env.Type, err)
	}
	patient, err := n.users.Get(ctx, a.PatientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load patient %d: %w", a.PatientID, err)
	}

	when := fmt.Sprintf("%s at %s with %s", a.Date, a.TimeSlot, a.DoctorName)
	msg := &email.Message{To: patient.Email}
	switch env.Type {
	case model.EventAppointmentCreated:
		msg.Subject = "Appointment confirmed"
		msg.Body = fmt.Sprintf("Hello %s,\n\nYour %s appointment is booked for %s.\n", patient.Name, a.Service, when)
	case model.EventAppointmentCancelled:
		msg.Subject = "Appointment cancelled"
		msg.Body = fmt.Sprintf("Hello %s,\n\nYour appointment on %s has been cancelled.\n", patient.Name, when)
	case model.EventAppointmentCompleted:
		msg.Subject = "Visit summary"
		msg.Body = fmt.Sprintf("Hello %s,\n\nThank you for visiting on %s.\n", patient.Name, when)
		if a.Notes != "" {
			msg.Body += "\nDoctor's notes: " + a.Notes + "\n"
		}
	default:
		return nil, nil
	}
	return msg, nil
}
