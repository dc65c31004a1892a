// Package appointment implements the appointment registry: booking, the status
// lifecycle and slot availability.
package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository"
	apperrors "github.com/jwalitptl/clinic-portal/pkg/errors"
	"github.com/jwalitptl/clinic-portal/pkg/event"
	"github.com/jwalitptl/clinic-portal/pkg/metrics"
	"github.com/jwalitptl/clinic-portal/pkg/validator"
)

// recentLimit caps the completed visits shown on a patient overview.
const recentLimit = 3

type Service struct {
	repo      repository.AppointmentRepository
	users     repository.UserRepository
	publisher event.Publisher
	metrics   *metrics.Metrics
	validate  *validator.Validator
	now       func() time.Time
	loc       *time.Location
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the clinic time zone used to decide what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithPublisher(p event.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(repo repository.AppointmentRepository, users repository.UserRepository, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		users:     users,
		publisher: event.Nop{},
		validate:  validator.New(),
		now:       time.Now,
		loc:       time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNop()
	}
	return s
}

func translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("Appointment", nil)
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConflict("Time slot is already booked", err)
	case errors.Is(err, repository.ErrStale):
		return apperrors.NewConflict("Appointment was changed by another request", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return apperrors.NewInternal(err)
}

// Today returns the current clinic date as YYYY-MM-DD.
func (s *Service) Today() string {
	return s.now().In(s.loc).Format(model.DateLayout)
}

func (s *Service) list(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	appointments, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, translate(fmt.Errorf("failed to list appointments: %w", err))
	}
	return appointments, nil
}

func (s *Service) GetAll(ctx context.Context) ([]*model.Appointment, error) {
	return s.list(ctx, model.AppointmentFilter{})
}

func (s *Service) GetByPatientID(ctx context.Context, patientID int64) ([]*model.Appointment, error) {
	return s.list(ctx, model.AppointmentFilter{PatientID: patientID})
}

func (s *Service) GetByDoctorID(ctx context.Context, doctorID int64) ([]*model.Appointment, error) {
	return s.list(ctx, model.AppointmentFilter{DoctorID: doctorID})
}

func (s *Service) GetTodaysAppointments(ctx context.Context, doctorID int64) ([]*model.Appointment, error) {
	today, err := s.list(ctx, model.AppointmentFilter{DoctorID: doctorID, Date: s.Today()})
	if err != nil {
		return nil, err
	}
	sortBySchedule(today)
	return today, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*model.Appointment, error) {
	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return appointment, nil
}

// Create books a new upcoming appointment. The doctor and patient names are
// copied onto the record at booking time.
func (s *Service) Create(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	doctor, err := s.users.Get(ctx, req.DoctorID)
	if err != nil || !doctor.IsDoctor() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInternal(err)
		}
		return nil, apperrors.NewNotFound("Doctor", nil)
	}
	patient, err := s.users.Get(ctx, req.PatientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("Patient", nil)
		}
		return nil, apperrors.NewInternal(err)
	}

	appointment := &model.Appointment{
		PatientID:   patient.ID,
		DoctorID:    doctor.ID,
		PatientName: patient.Name,
		DoctorName:  doctor.Name,
		Date:        req.Date,
		TimeSlot:    req.TimeSlot,
		Service:     req.Service,
		Status:      model.AppointmentStatusUpcoming,
		Notes:       "",
		CreatedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, appointment); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.metrics.BookingConflicts.Inc()
		}
		return nil, translate(err)
	}
	s.metrics.AppointmentsBooked.Inc()

	if err := s.publisher.Publish(ctx, model.EventAppointmentCreated, appointment); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return appointment, nil
}

// Update applies a partial change. Status changes follow the lifecycle
// upcoming -> completed | cancelled; only upcoming appointments can be
// rescheduled.
func (s *Service) Update(ctx context.Context, id int64, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	previous := appointment.Status

	if req.Date != nil || req.TimeSlot != nil || req.Service != nil {
		if previous != model.AppointmentStatusUpcoming {
			return nil, apperrors.NewValidation(fmt.Sprintf("%s appointments cannot be rescheduled", previous))
		}
		if req.Date != nil {
			appointment.Date = *req.Date
		}
		if req.TimeSlot != nil {
			appointment.TimeSlot = *req.TimeSlot
		}
		if req.Service != nil {
			appointment.Service = *req.Service
		}
	}
	if req.Notes != nil {
		appointment.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.Status != nil {
		next := *req.Status
		if !next.Valid() {
			return nil, apperrors.NewValidation(fmt.Sprintf("status %q is not a valid appointment status", next))
		}
		if !previous.CanTransitionTo(next) {
			return nil, apperrors.InvalidTransition(string(previous), string(next))
		}
		appointment.Status = next
	}

	if err := s.repo.Update(ctx, appointment, previous); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.metrics.BookingConflicts.Inc()
		}
		if errors.Is(err, repository.ErrStale) && req.Status != nil {
			if current, getErr := s.repo.Get(ctx, id); getErr == nil && !current.Status.CanTransitionTo(*req.Status) {
				return nil, apperrors.InvalidTransition(string(current.Status), string(*req.Status))
			}
		}
		return nil, translate(err)
	}

	eventType := model.EventAppointmentUpdated
	if appointment.Status != previous {
		s.metrics.AppointmentTransitions.WithLabelValues(string(appointment.Status)).Inc()
		switch appointment.Status {
		case model.AppointmentStatusCompleted:
			eventType = model.EventAppointmentCompleted
		case model.AppointmentStatusCancelled:
			eventType = model.EventAppointmentCancelled
		}
	}
	if err := s.publisher.Publish(ctx, eventType, appointment); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return appointment, nil
}

// Complete marks an upcoming appointment completed with the doctor's notes.
func (s *Service) Complete(ctx context.Context, id int64, notes string) (*model.Appointment, error) {
	status := model.AppointmentStatusCompleted
	return s.Update(ctx, id, &model.UpdateAppointmentRequest{Status: &status, Notes: &notes})
}

// Cancel releases the appointment's slot.
func (s *Service) Cancel(ctx context.Context, id int64) (*model.Appointment, error) {
	status := model.AppointmentStatusCancelled
	return s.Update(ctx, id, &model.UpdateAppointmentRequest{Status: &status})
}

func (s *Service) Delete(ctx context.Context, id int64) (*model.Appointment, error) {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if err := s.publisher.Publish(ctx, model.EventAppointmentDeleted, removed); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return removed, nil
}

// GetAvailableTimeSlots returns the slot catalog, in order, minus the slots the
// doctor already holds on date.
func (s *Service) GetAvailableTimeSlots(ctx context.Context, date string, doctorID int64) ([]string, error) {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return nil, apperrors.NewValidation("date must be a YYYY-MM-DD date")
	}
	if doctorID <= 0 {
		return nil, apperrors.NewValidation("doctorId is required")
	}

	booked, err := s.repo.BookedSlots(ctx, doctorID, date)
	if err != nil {
		return nil, translate(fmt.Errorf("failed to load booked slots: %w", err))
	}
	taken := make(map[string]struct{}, len(booked))
	for _, slot := range booked {
		taken[slot] = struct{}{}
	}

	available := make([]string, 0, len(model.TimeSlots))
	for _, slot := range model.TimeSlots {
		if _, ok := taken[slot]; !ok {
			available = append(available, slot)
		}
	}
	return available, nil
}

func (s *Service) GetServices() []string {
	return append([]string(nil), model.Services...)
}

func (s *Service) DoctorDashboard(ctx context.Context, doctorID int64) (*model.DoctorDashboard, error) {
	all, err := s.GetByDoctorID(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	today := s.Today()
	dashboard := &model.DoctorDashboard{Today: make([]*model.Appointment, 0)}
	patients := make(map[int64]struct{})
	for _, a := range all {
		patients[a.PatientID] = struct{}{}
		if a.Date == today {
			dashboard.Today = append(dashboard.Today, a)
		}
		switch a.Status {
		case model.AppointmentStatusUpcoming:
			dashboard.UpcomingCount++
		case model.AppointmentStatusCompleted:
			dashboard.CompletedCount++
		}
	}
	sortBySchedule(dashboard.Today)
	dashboard.TodayCount = len(dashboard.Today)
	dashboard.TotalPatients = len(patients)
	return dashboard, nil
}

func (s *Service) PatientOverview(ctx context.Context, patientID int64) (*model.PatientOverview, error) {
	all, err := s.GetByPatientID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	today := s.Today()
	overview := &model.PatientOverview{
		Upcoming: make([]*model.Appointment, 0),
		Recent:   make([]*model.Appointment, 0),
	}
	for _, a := range all {
		switch {
		case a.Status == model.AppointmentStatusUpcoming && a.Date >= today:
			overview.Upcoming = append(overview.Upcoming, a)
		case a.Status == model.AppointmentStatusCompleted:
			overview.Recent = append(overview.Recent, a)
		}
	}

	sortBySchedule(overview.Upcoming)
	sortBySchedule(overview.Recent)
	reverse(overview.Recent)
	if len(overview.Recent) > recentLimit {
		overview.Recent = overview.Recent[:recentLimit]
	}
	return overview, nil
}

// sortBySchedule orders by date, then by slot position within the day.
func sortBySchedule(appointments []*model.Appointment) {
	sort.SliceStable(appointments, func(i, j int) bool {
		if appointments[i].Date != appointments[j].Date {
			return appointments[i].Date < appointments[j].Date
		}
		return model.SlotOrder(appointments[i].TimeSlot) < model.SlotOrder(appointments[j].TimeSlot)
	})
}

func reverse(appointments []*model.Appointment) {
	for i, j := 0, len(appointments)-1; i < j; i, j = i+1, j-1 {
		appointments[i], appointments[j] = appointments[j], appointments[i]
	}
}
