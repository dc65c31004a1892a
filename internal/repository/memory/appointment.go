package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository"
)

type slotKey struct {
	doctorID int64
	date     string
	timeSlot string
}

func keyOf(a *model.Appointment) slotKey {
	return slotKey{doctorID: a.DoctorID, date: a.Date, timeSlot: a.TimeSlot}
}

type appointmentRepository struct {
	mu           sync.RWMutex
	appointments map[int64]*model.Appointment
	// slots maps every held (doctor, date, slot) triple to the appointment holding it.
	slots map[slotKey]int64
	seq   sequence
}

func NewAppointmentRepository() repository.AppointmentRepository {
	return &appointmentRepository{
		appointments: make(map[int64]*model.Appointment),
		slots:        make(map[slotKey]int64),
	}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := keyOf(appointment)
	if appointment.HoldsSlot() {
		if _, taken := r.slots[key]; taken {
			return fmt.Errorf("slot %s %s for doctor %d: %w", key.date, key.timeSlot, key.doctorID, repository.ErrConflict)
		}
	}

	appointment.ID = r.seq.next()
	r.appointments[appointment.ID] = appointment.Clone()
	if appointment.HoldsSlot() {
		r.slots[key] = appointment.ID
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	appointment, ok := r.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return appointment.Clone(), nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment, expected model.AppointmentStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.appointments[appointment.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if existing.Status != expected {
		return fmt.Errorf("appointment %d is %s, expected %s: %w", appointment.ID, existing.Status, expected, repository.ErrStale)
	}

	newKey := keyOf(appointment)
	if appointment.HoldsSlot() {
		if holder, taken := r.slots[newKey]; taken && holder != appointment.ID {
			return fmt.Errorf("slot %s %s for doctor %d: %w", newKey.date, newKey.timeSlot, newKey.doctorID, repository.ErrConflict)
		}
	}

	if existing.HoldsSlot() {
		delete(r.slots, keyOf(existing))
	}
	if appointment.HoldsSlot() {
		r.slots[newKey] = appointment.ID
	}
	r.appointments[appointment.ID] = appointment.Clone()
	return nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id int64) (*model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	if existing.HoldsSlot() {
		delete(r.slots, keyOf(existing))
	}
	delete(r.appointments, id)
	return existing, nil
}

func (r *appointmentRepository) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Appointment, 0)
	for _, a := range r.appointments {
		if filter.PatientID != 0 && a.PatientID != filter.PatientID {
			continue
		}
		if filter.DoctorID != 0 && a.DoctorID != filter.DoctorID {
			continue
		}
		if filter.Date != "" && a.Date != filter.Date {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		result = append(result, a.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *appointmentRepository) BookedSlots(ctx context.Context, doctorID int64, date string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	booked := make([]string, 0)
	for key := range r.slots {
		if key.doctorID == doctorID && key.date == date {
			booked = append(booked, key.timeSlot)
		}
	}
	sort.Slice(booked, func(i, j int) bool { return model.SlotOrder(booked[i]) < model.SlotOrder(booked[j]) })
	return booked, nil
}
