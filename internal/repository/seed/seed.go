// Package seed loads the demo fixtures shipped with the binary into a store.
package seed

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository"
	"github.com/jwalitptl/clinic-portal/pkg/security"
)

//go:embed fixtures/*.json
var fixtures embed.FS

type userFixture struct {
	ID             int64      `json:"id"`
	Email          string     `json:"email"`
	Password       string     `json:"password"`
	Name           string     `json:"name"`
	Phone          string     `json:"phone"`
	Role           model.Role `json:"role"`
	Specialization string     `json:"specialization"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type appointmentFixture struct {
	ID        int64                   `json:"id"`
	PatientID int64                   `json:"patientId"`
	DoctorID  int64                   `json:"doctorId"`
	Date      string                  `json:"date"`
	TimeSlot  string                  `json:"timeSlot"`
	Service   string                  `json:"service"`
	Status    model.AppointmentStatus `json:"status"`
	Notes     string                  `json:"notes"`
}

type reportFixture struct {
	ID            int64          `json:"id"`
	PatientID     int64          `json:"patientId"`
	AppointmentID *int64         `json:"appointmentId"`
	FileName      string         `json:"fileName"`
	FileType      model.FileType `json:"fileType"`
	FileSize      int64          `json:"fileSize"`
	UploadDate    time.Time      `json:"uploadDate"`
}

// Fixtures holds the decoded demo data. Ids are fixture-local.
type Fixtures struct {
	Users        []userFixture
	Appointments []appointmentFixture
	Reports      []reportFixture
}

func Load() (*Fixtures, error) {
	var f Fixtures
	if err := decode("fixtures/users.json", &f.Users); err != nil {
		return nil, err
	}
	if err := decode("fixtures/appointments.json", &f.Appointments); err != nil {
		return nil, err
	}
	if err := decode("fixtures/reports.json", &f.Reports); err != nil {
		return nil, err
	}
	return &f, nil
}

func decode(name string, v interface{}) error {
	raw, err := fixtures.ReadFile(name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

// Apply writes the fixtures through the store's repositories. Fixture ids are
// remapped to the ids the store assigns, so the store need not start empty.
func Apply(ctx context.Context, store repository.Store, f *Fixtures, hasher security.PasswordHasher, fileURLPrefix string) error {
	users := make(map[int64]*model.User, len(f.Users))
	for _, fx := range f.Users {
		hash, err := hasher.Hash(fx.Password)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", fx.Email, err)
		}
		u := &model.User{
			Email:          fx.Email,
			PasswordHash:   hash,
			Name:           fx.Name,
			Phone:          fx.Phone,
			Role:           fx.Role,
			Specialization: fx.Specialization,
			CreatedAt:      fx.CreatedAt,
		}
		if err := store.Users.Create(ctx, u); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", fx.Email, err)
		}
		users[fx.ID] = u
	}

	appointments := make(map[int64]int64, len(f.Appointments))
	for _, fx := range f.Appointments {
		patient, doctor := users[fx.PatientID], users[fx.DoctorID]
		if patient == nil || doctor == nil {
			return fmt.Errorf("appointment fixture %d references unknown user", fx.ID)
		}
		a := &model.Appointment{
			PatientID:   patient.ID,
			DoctorID:    doctor.ID,
			PatientName: patient.Name,
			DoctorName:  doctor.Name,
			Date:        fx.Date,
			TimeSlot:    fx.TimeSlot,
			Service:     fx.Service,
			Status:      fx.Status,
			Notes:       fx.Notes,
			CreatedAt:   patient.CreatedAt,
		}
		if err := store.Appointments.Create(ctx, a); err != nil {
			return fmt.Errorf("failed to seed appointment %d: %w", fx.ID, err)
		}
		appointments[fx.ID] = a.ID
	}

	for _, fx := range f.Reports {
		patient := users[fx.PatientID]
		if patient == nil {
			return fmt.Errorf("report fixture %d references unknown patient", fx.ID)
		}
		r := &model.MedicalReport{
			PatientID:  patient.ID,
			FileName:   fx.FileName,
			FileURL:    fileURLPrefix + "/" + fx.FileName,
			FileType:   fx.FileType,
			FileSize:   fx.FileSize,
			UploadDate: fx.UploadDate,
		}
		if fx.AppointmentID != nil {
			id, ok := appointments[*fx.AppointmentID]
			if !ok {
				return fmt.Errorf("report fixture %d references unknown appointment", fx.ID)
			}
			r.AppointmentID = &id
		}
		if err := store.Reports.Create(ctx, r); err != nil {
			return fmt.Errorf("failed to seed report %d: %w", fx.ID, err)
		}
	}

	return nil
}
