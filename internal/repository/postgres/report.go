package postgres

import (
	"context"

	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository"
)

const reportColumns = `id, patient_id, appointment_id, file_name, file_url, file_type, file_size, upload_date`

type reportRepository struct {
	BaseRepository
}

func NewReportRepository(base BaseRepository) repository.ReportRepository {
	return &reportRepository{base}
}

func (r *reportRepository) Create(ctx context.Context, report *model.MedicalReport) error {
	query := `
		INSERT INTO medical_reports (
			patient_id, appointment_id, file_name, file_url, file_type, file_size, upload_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.db.QueryRowxContext(ctx, query,
		report.PatientID,
		report.AppointmentID,
		report.FileName,
		report.FileURL,
		report.FileType,
		report.FileSize,
		report.UploadDate,
	).Scan(&report.ID)
	return translateError(err, "create medical report")
}

func (r *reportRepository) Get(ctx context.Context, id int64) (*model.MedicalReport, error) {
	var report model.MedicalReport
	err := r.db.GetContext(ctx, &report, `SELECT `+reportColumns+` FROM medical_reports WHERE id = $1`, id)
	if err != nil {
		return nil, translateError(err, "get medical report")
	}
	return &report, nil
}

func (r *reportRepository) Update(ctx context.Context, report *model.MedicalReport) error {
	query := `
		UPDATE medical_reports
		SET appointment_id = $1, file_name = $2, file_url = $3, file_type = $4
		WHERE id = $5
	`
	result, err := r.db.ExecContext(ctx, query,
		report.AppointmentID,
		report.FileName,
		report.FileURL,
		report.FileType,
		report.ID,
	)
	if err != nil {
		return translateError(err, "update medical report")
	}
	return checkAffected(result)
}

func (r *reportRepository) Delete(ctx context.Context, id int64) (*model.MedicalReport, error) {
	var report model.MedicalReport
	err := r.db.GetContext(ctx, &report,
		`DELETE FROM medical_reports WHERE id = $1 RETURNING `+reportColumns, id)
	if err != nil {
		return nil, translateError(err, "delete medical report")
	}
	return &report, nil
}

func (r *reportRepository) List(ctx context.Context, filter model.ReportFilter) ([]*model.MedicalReport, error) {
	query := `
		SELECT ` + reportColumns + ` FROM medical_reports
		WHERE ($1 = 0 OR patient_id = $1) AND ($2 = 0 OR appointment_id = $2)
		ORDER BY id
	`
	reports := make([]*model.MedicalReport, 0)
	if err := r.db.SelectContext(ctx, &reports, query, filter.PatientID, filter.AppointmentID); err != nil {
		return nil, translateError(err, "list medical reports")
	}
	return reports, nil
}
