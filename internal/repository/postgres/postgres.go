package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-portal/internal/repository"
)

// NewStore wires every registry onto one connection pool.
func NewStore(db *sqlx.DB) repository.Store {
	base := NewBaseRepository(db)
	return repository.Store{
		Users:        NewUserRepository(base),
		Appointments: NewAppointmentRepository(base),
		Reports:      NewReportRepository(base),
		Outbox:       NewOutboxRepository(base),
		Ping:         db.PingContext,
		Close:        db.Close,
	}
}

