package report

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository"
	"github.com/jwalitptl/clinic-portal/internal/repository/memory"
	apperrors "github.com/jwalitptl/clinic-portal/pkg/errors"
	"github.com/jwalitptl/clinic-portal/pkg/event"
)

var uploadTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// newTestStore holds patients 1 to 4 and doctor 5, with appointment 1 for
// patient 4 and appointment 2 for patient 1.
func newTestStore(t *testing.T) repository.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	for i := 1; i <= 4; i++ {
		require.NoError(t, store.Users.Create(ctx, &model.User{
			Email: fmt.Sprintf("patient%d@demo.com", i), Name: fmt.Sprintf("Patient %d", i), Role: model.RolePatient,
		}))
	}
	require.NoError(t, store.Users.Create(ctx, &model.User{Email: "doctor@demo.com", Name: "Doctor", Role: model.RoleDoctor}))

	for i, patientID := range []int64{4, 1} {
		require.NoError(t, store.Appointments.Create(ctx, &model.Appointment{
			PatientID: patientID, DoctorID: 5, Date: "2024-06-01", TimeSlot: []string{"9:00 AM", "9:30 AM"}[i],
			Service: "Follow-up", Status: model.AppointmentStatusUpcoming,
		}))
	}
	return store
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	store := newTestStore(t)
	opts = append([]Option{WithClock(func() time.Time { return uploadTime })}, opts...)
	return NewService(store.Reports, store.Users, store.Appointments, opts...)
}

func TestFileTypeOf(t *testing.T) {
	tests := []struct {
		mime string
		want model.FileType
	}{
		{"application/pdf", model.FileTypePDF},
		{"image/png", model.FileTypeImage},
		{"image/jpeg", model.FileTypeImage},
		{"application/msword", model.FileTypeOther},
		{"", model.FileTypeOther},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			assert.Equal(t, tt.want, FileTypeOf(tt.mime))
		})
	}
}

func TestUploadFile(t *testing.T) {
	outbox := memory.NewOutboxRepository()
	svc := newTestService(t, WithPublisher(event.NewOutboxPublisher(outbox)))
	ctx := context.Background()
	appointmentID := int64(1)

	r, err := svc.UploadFile(ctx, model.FileMeta{Name: "blood-test.pdf", MIMEType: "application/pdf", Size: 2048}, 4, &appointmentID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.ID)
	assert.Equal(t, "/mock-files/blood-test.pdf", r.FileURL)
	assert.Equal(t, model.FileTypePDF, r.FileType)
	assert.Equal(t, uploadTime, r.UploadDate)
	require.NotNil(t, r.AppointmentID)
	assert.Equal(t, int64(1), *r.AppointmentID)

	byAppointment, err := svc.GetByAppointmentID(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, byAppointment, 1)

	events, err := outbox.GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventReportUploaded, events[0].EventType)
}

func TestUploadFileLimits(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		file model.FileMeta
	}{
		{"too large", model.FileMeta{Name: "scan.png", MIMEType: "image/png", Size: 6 << 20}},
		{"bad extension", model.FileMeta{Name: "run.exe", MIMEType: "application/octet-stream", Size: 10}},
		{"empty", model.FileMeta{Name: "x.pdf", MIMEType: "application/pdf", Size: 0}},
		{"no name", model.FileMeta{Name: "", Size: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UploadFile(ctx, tt.file, 1, nil)
			assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
		})
	}

	r, err := svc.UploadFile(ctx, model.FileMeta{Name: "../../notes.DOCX", MIMEType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Size: 10}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "notes.DOCX", r.FileName)
	assert.Equal(t, model.FileTypeOther, r.FileType)
	assert.Nil(t, r.AppointmentID)
}

func TestUpdateAndDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, &model.MedicalReport{PatientID: 4, FileName: "xray.jpg", FileType: model.FileTypeImage})
	require.NoError(t, err)

	name := "chest-xray.jpg"
	appointmentID := int64(1)
	updated, err := svc.Update(ctx, r.ID, &model.UpdateReportRequest{FileName: &name, AppointmentID: &appointmentID})
	require.NoError(t, err)
	assert.Equal(t, "chest-xray.jpg", updated.FileName)
	assert.Equal(t, int64(1), *updated.AppointmentID)

	foreign := int64(2)
	_, err = svc.Update(ctx, r.ID, &model.UpdateReportRequest{AppointmentID: &foreign})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	missing := int64(999)
	_, err = svc.Update(ctx, r.ID, &model.UpdateReportRequest{AppointmentID: &missing})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	got, err := svc.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), *got.AppointmentID)

	removed, err := svc.Delete(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, removed.ID)

	_, err = svc.GetByID(ctx, r.ID)
	require.Error(t, err)
	assert.Equal(t, "Report not found", err.Error())

	_, err = svc.Update(ctx, r.ID, &model.UpdateReportRequest{FileName: &name})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = svc.Delete(ctx, r.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestListByPatient(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, patientID := range []int64{1, 2, 1} {
		_, err := svc.Create(ctx, &model.MedicalReport{PatientID: patientID, FileName: "r.pdf"})
		require.NoError(t, err)
	}

	mine, err := svc.GetByPatientID(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, err := svc.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUploadFileChecksReferences(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	file := model.FileMeta{Name: "scan.pdf", MIMEType: "application/pdf", Size: 100}
	missing := int64(999)
	otherPatients := int64(2)

	_, err := svc.UploadFile(ctx, file, 4242, &missing)
	require.Error(t, err)
	assert.Equal(t, "Patient not found", err.Error())

	_, err = svc.UploadFile(ctx, file, 4, &missing)
	require.Error(t, err)
	assert.Equal(t, "Appointment not found", err.Error())

	_, err = svc.UploadFile(ctx, file, 4, &otherPatients)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = svc.UploadFile(ctx, file, 5, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	all, err := svc.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
