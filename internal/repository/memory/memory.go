// Package memory implements the repository contracts over process memory.
// Each registry owns one RWMutex: reads run concurrently and return copies,
// writes are serialized.
package memory

import (
	"context"

	"github.com/jwalitptl/clinic-portal/internal/repository"
)

// sequence hands out monotonically increasing ids. Callers hold the owning
// registry's write lock.
type sequence struct {
	last int64
}

func (s *sequence) next() int64 {
	s.last++
	return s.last
}

// NewStore returns an empty in-memory store.
func NewStore() repository.Store {
	return repository.Store{
		Users:        NewUserRepository(),
		Appointments: NewAppointmentRepository(),
		Reports:      NewReportRepository(),
		Outbox:       NewOutboxRepository(),
		Ping:         func(ctx context.Context) error { return ctx.Err() },
		Close:        func() error { return nil },
	}
}
