// Package report implements the medical report registry. Uploads are recorded
// by metadata only; file bytes are never stored.
package report

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository"
	apperrors "github.com/jwalitptl/clinic-portal/pkg/errors"
	"github.com/jwalitptl/clinic-portal/pkg/event"
	"github.com/jwalitptl/clinic-portal/pkg/metrics"
)

// Limits bounds what UploadFile accepts.
type Limits struct {
	MaxSizeBytes      int64
	AllowedExtensions []string
	FileURLPrefix     string
}

func DefaultLimits() Limits {
	return Limits{
		MaxSizeBytes:      5 << 20,
		AllowedExtensions: []string{".pdf", ".jpg", ".jpeg", ".png", ".doc", ".docx"},
		FileURLPrefix:     "/mock-files",
	}
}

type Service struct {
	repo         repository.ReportRepository
	users        repository.UserRepository
	appointments repository.AppointmentRepository
	publisher event.Publisher
	metrics   *metrics.Metrics
	limits    Limits
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPublisher(p event.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLimits(l Limits) Option {
	return func(s *Service) { s.limits = l }
}

func NewService(repo repository.ReportRepository, users repository.UserRepository, appointments repository.AppointmentRepository, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		users:        users,
		appointments: appointments,
		publisher:    event.Nop{},
		limits:       DefaultLimits(),
		now:          time.Now,
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
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("Report", nil)
	}
	if errors.Is(err, repository.ErrInvalidReference) {
		return apperrors.NewValidation("report references a missing patient or appointment")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperrors.NewInternal(err)
}

func (s *Service) list(ctx context.Context, filter model.ReportFilter) ([]*model.MedicalReport, error) {
	reports, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, translate(fmt.Errorf("failed to list reports: %w", err))
	}
	return reports, nil
}

// checkReferences verifies the patient exists and that the appointment, when
// given, belongs to that patient.
func (s *Service) checkReferences(ctx context.Context, patientID int64, appointmentID *int64) error {
	patient, err := s.users.Get(ctx, patientID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("Patient", nil)
	case err != nil:
		return translate(fmt.Errorf("failed to get patient: %w", err))
	case patient.Role != model.RolePatient:
		return apperrors.NewValidation("patientId must refer to a patient")
	}

	if appointmentID == nil {
		return nil
	}
	appointment, err := s.appointments.Get(ctx, *appointmentID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("Appointment", nil)
	case err != nil:
		return translate(fmt.Errorf("failed to get appointment: %w", err))
	case appointment.PatientID != patientID:
		return apperrors.NewValidation("appointment belongs to another patient")
	}
	return nil
}

func (s *Service) GetAll(ctx context.Context) ([]*model.MedicalReport, error) {
	return s.list(ctx, model.ReportFilter{})
}

func (s *Service) GetByPatientID(ctx context.Context, patientID int64) ([]*model.MedicalReport, error) {
	return s.list(ctx, model.ReportFilter{PatientID: patientID})
}

func (s *Service) GetByAppointmentID(ctx context.Context, appointmentID int64) ([]*model.MedicalReport, error) {
	return s.list(ctx, model.ReportFilter{AppointmentID: appointmentID})
}

func (s *Service) GetByID(ctx context.Context, id int64) (*model.MedicalReport, error) {
	report, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return report, nil
}

// Create stores report with a fresh id and the current upload time.
func (s *Service) Create(ctx context.Context, report *model.MedicalReport) (*model.MedicalReport, error) {
	if report.PatientID <= 0 {
		return nil, apperrors.NewValidation("patientId is required")
	}
	if strings.TrimSpace(report.FileName) == "" {
		return nil, apperrors.NewValidation("fileName is required")
	}
	if err := s.checkReferences(ctx, report.PatientID, report.AppointmentID); err != nil {
		return nil, err
	}

	report.UploadDate = s.now()
	if err := s.repo.Create(ctx, report); err != nil {
		return nil, translate(fmt.Errorf("failed to create report: %w", err))
	}
	return report, nil
}

func (s *Service) Update(ctx context.Context, id int64, req *model.UpdateReportRequest) (*model.MedicalReport, error) {
	report, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}

	if req.FileName != nil {
		name := strings.TrimSpace(*req.FileName)
		if name == "" {
			return nil, apperrors.NewValidation("fileName is required")
		}
		report.FileName = name
	}
	if req.AppointmentID != nil {
		if *req.AppointmentID <= 0 {
			report.AppointmentID = nil
		} else {
			appointmentID := *req.AppointmentID
			report.AppointmentID = &appointmentID
		}
		if err := s.checkReferences(ctx, report.PatientID, report.AppointmentID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, report); err != nil {
		return nil, translate(err)
	}
	return report, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (*model.MedicalReport, error) {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return removed, nil
}

// UploadFile records an uploaded file against a patient and, optionally, an
// appointment. The file URL is synthesised from the configured prefix.
func (s *Service) UploadFile(ctx context.Context, file model.FileMeta, patientID int64, appointmentID *int64) (*model.MedicalReport, error) {
	name := path.Base(filepath.ToSlash(strings.TrimSpace(file.Name)))
	if name == "" || name == "." || name == "/" {
		return nil, apperrors.NewValidation("file is required")
	}
	if err := s.checkLimits(name, file.Size); err != nil {
		return nil, err
	}

	report := &model.MedicalReport{
		PatientID: patientID,
		FileName:  name,
		FileURL:   strings.TrimRight(s.limits.FileURLPrefix, "/") + "/" + name,
		FileType:  FileTypeOf(file.MIMEType),
		FileSize:  file.Size,
	}
	if appointmentID != nil && *appointmentID > 0 {
		id := *appointmentID
		report.AppointmentID = &id
	}

	created, err := s.Create(ctx, report)
	if err != nil {
		return nil, err
	}
	s.metrics.ReportsUploaded.WithLabelValues(string(created.FileType)).Inc()

	if err := s.publisher.Publish(ctx, model.EventReportUploaded, created); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return created, nil
}

func (s *Service) checkLimits(name string, size int64) error {
	if size <= 0 {
		return apperrors.NewValidation("file is empty")
	}
	if s.limits.MaxSizeBytes > 0 && size > s.limits.MaxSizeBytes {
		return apperrors.NewValidation(fmt.Sprintf("file exceeds the %d MB limit", s.limits.MaxSizeBytes>>20))
	}
	if len(s.limits.AllowedExtensions) == 0 {
		return nil
	}

	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range s.limits.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}
	return apperrors.NewValidation(fmt.Sprintf("file type %q is not allowed", ext))
}

// FileTypeOf classifies a MIME type.
func FileTypeOf(mimeType string) model.FileType {
	mimeType = strings.ToLower(mimeType)
	switch {
	case strings.Contains(mimeType, "pdf"):
		return model.FileTypePDF
	case strings.HasPrefix(mimeType, "image/"):
		return model.FileTypeImage
	}
	return model.FileTypeOther
}
