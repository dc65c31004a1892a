package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository"
)

const appointmentColumns = `id, patient_id, doctor_id, patient_name, doctor_name,
	date, time_slot, service, status, notes, created_at`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

// Create relies on appointments_slot_uniq to reject a second booking of a held slot.
func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			patient_id, doctor_id, patient_name, doctor_name,
			date, time_slot, service, status, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.db.QueryRowxContext(ctx, query,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.PatientName,
		appointment.DoctorName,
		appointment.Date,
		appointment.TimeSlot,
		appointment.Service,
		appointment.Status,
		appointment.Notes,
		appointment.CreatedAt,
	).Scan(&appointment.ID)
	return translateError(err, "create appointment")
}

func (r *appointmentRepository) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	if err != nil {
		return nil, translateError(err, "get appointment")
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment, expected model.AppointmentStatus) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var current model.AppointmentStatus
		if err := tx.GetContext(ctx, &current, `SELECT status FROM appointments WHERE id = $1 FOR UPDATE`, appointment.ID); err != nil {
			return translateError(err, "lock appointment")
		}
		if current != expected {
			return fmt.Errorf("appointment %d is %s, expected %s: %w", appointment.ID, current, expected, repository.ErrStale)
		}

		query := `
			UPDATE appointments
			SET date = $1, time_slot = $2, service = $3, status = $4, notes = $5
			WHERE id = $6 AND status = $7
		`
		result, err := tx.ExecContext(ctx, query,
			appointment.Date,
			appointment.TimeSlot,
			appointment.Service,
			appointment.Status,
			appointment.Notes,
			appointment.ID,
			expected,
		)
		if err != nil {
			return translateError(err, "update appointment")
		}
		if rows, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		} else if rows == 0 {
			return fmt.Errorf("appointment %d: %w", appointment.ID, repository.ErrStale)
		}
		return nil
	})
}

func (r *appointmentRepository) Delete(ctx context.Context, id int64) (*model.Appointment, error) {
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment,
		`DELETE FROM appointments WHERE id = $1 RETURNING `+appointmentColumns, id)
	if err != nil {
		return nil, translateError(err, "delete appointment")
	}
	return &appointment, nil
}

func (r *appointmentRepository) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	var (
		conditions []string
		args       []interface{}
	)
	add := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.PatientID != 0 {
		add("patient_id", filter.PatientID)
	}
	if filter.DoctorID != 0 {
		add("doctor_id", filter.DoctorID)
	}
	if filter.Date != "" {
		add("date", filter.Date)
	}
	if filter.Status != "" {
		add("status", filter.Status)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	appointments := make([]*model.Appointment, 0)
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, translateError(err, "list appointments")
	}
	return appointments, nil
}

func (r *appointmentRepository) BookedSlots(ctx context.Context, doctorID int64, date string) ([]string, error) {
	query := `
		SELECT time_slot FROM appointments
		WHERE doctor_id = $1 AND date = $2 AND status <> 'cancelled'
	`
	slots := make([]string, 0)
	if err := r.db.SelectContext(ctx, &slots, query, doctorID, date); err != nil {
		return nil, translateError(err, "list booked slots")
	}
	return slots, nil
}
