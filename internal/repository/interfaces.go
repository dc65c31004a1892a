package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-portal/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict signals a uniqueness violation: a taken email or an occupied slot.
	ErrConflict = errors.New("record conflicts with existing data")
	// ErrStale signals a compare-and-set write whose expected state no longer holds.
	ErrStale = errors.New("record was modified concurrently")
	// ErrInvalidReference signals a foreign key pointing at a missing record.
	ErrInvalidReference = errors.New("referenced record does not exist")
)

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id int64) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		List(ctx context.Context, role model.Role) ([]*model.User, error)
	}

	// AppointmentRepository enforces that a (doctor, date, slot) triple is held
	// by at most one non-cancelled appointment; Create and Update return
	// ErrConflict otherwise. Update only writes while the stored status still
	// equals expected and returns ErrStale when it does not.
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id int64) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment, expected model.AppointmentStatus) error
		Delete(ctx context.Context, id int64) (*model.Appointment, error)
		List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error)
		BookedSlots(ctx context.Context, doctorID int64, date string) ([]string, error)
	}

	ReportRepository interface {
		Create(ctx context.Context, report *model.MedicalReport) error
		Get(ctx context.Context, id int64) (*model.MedicalReport, error)
		Update(ctx context.Context, report *model.MedicalReport) error
		Delete(ctx context.Context, id int64) (*model.MedicalReport, error)
		List(ctx context.Context, filter model.ReportFilter) ([]*model.MedicalReport, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		// ClaimPendingEvents moves up to limit pending events to PROCESSING and
		// returns them, so concurrent relays never share an event. Events
		// claimed longer than lease ago are claimable again.
		ClaimPendingEvents(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
		// DeleteProcessedBefore purges delivered events created before cutoff.
		DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}
)

// Store bundles the registries of one backend.
type Store struct {
	Users        UserRepository
	Appointments AppointmentRepository
	Reports      ReportRepository
	Outbox       OutboxRepository
	// Ping reports backend health; nil means always healthy.
	Ping  func(ctx context.Context) error
	Close func() error
}
