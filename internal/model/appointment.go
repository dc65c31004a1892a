package model

import (
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusUpcoming  AppointmentStatus = "upcoming"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// DateLayout is the calendar-date format used for Appointment.Date.
const DateLayout = "2006-01-02"

// appointmentTransitions lists the allowed status changes. Terminal states have no entry.
var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusUpcoming: {AppointmentStatusCompleted, AppointmentStatusCancelled},
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusUpcoming, AppointmentStatusCompleted, AppointmentStatusCancelled:
		return true
	}
	return false
}

func (s AppointmentStatus) Terminal() bool {
	return len(appointmentTransitions[s]) == 0
}

// CanTransitionTo reports whether a status change from s to next is allowed.
// Re-applying the current status is always allowed.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID          int64             `json:"id" db:"id"`
	PatientID   int64             `json:"patientId" db:"patient_id"`
	DoctorID    int64             `json:"doctorId" db:"doctor_id"`
	PatientName string            `json:"patientName" db:"patient_name"`
	DoctorName  string            `json:"doctorName" db:"doctor_name"`
	Date        string            `json:"date" db:"date"`
	TimeSlot    string            `json:"timeSlot" db:"time_slot"`
	Service     string            `json:"service" db:"service"`
	Status      AppointmentStatus `json:"status" db:"status"`
	Notes       string            `json:"notes" db:"notes"`
	CreatedAt   time.Time         `json:"createdAt" db:"created_at"`
}

func (a *Appointment) Clone() *Appointment {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// HoldsSlot reports whether the appointment occupies its (doctor, date, slot) triple.
func (a *Appointment) HoldsSlot() bool {
	return a.Status != AppointmentStatusCancelled
}

type CreateAppointmentRequest struct {
	PatientID int64  `json:"patientId" binding:"required"`
	DoctorID  int64  `json:"doctorId" binding:"required"`
	Date      string `json:"date" binding:"required,isodate"`
	TimeSlot  string `json:"timeSlot" binding:"required,timeslot"`
	Service   string `json:"service" binding:"required,service"`
	Notes     string `json:"notes" binding:"max=1000"`
}

type UpdateAppointmentRequest struct {
	Date     *string            `json:"date" binding:"omitempty,isodate"`
	TimeSlot *string            `json:"timeSlot" binding:"omitempty,timeslot"`
	Service  *string            `json:"service" binding:"omitempty,service"`
	Status   *AppointmentStatus `json:"status"`
	Notes    *string            `json:"notes" binding:"omitempty,max=1000"`
}

type CompleteAppointmentRequest struct {
	Notes string `json:"notes" binding:"max=1000"`
}

// AppointmentFilter narrows a listing. Zero values are ignored.
type AppointmentFilter struct {
	PatientID int64
	DoctorID  int64
	Date      string
	Status    AppointmentStatus
}

type DoctorDashboard struct {
	Today          []*Appointment `json:"today"`
	TodayCount     int            `json:"todayCount"`
	UpcomingCount  int            `json:"upcomingCount"`
	CompletedCount int            `json:"completedCount"`
	TotalPatients  int            `json:"totalPatients"`
}

type PatientOverview struct {
	Upcoming []*Appointment `json:"upcoming"`
	Recent   []*Appointment `json:"recent"`
}
