package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository"
)

type reportRepository struct {
	mu      sync.RWMutex
	reports map[int64]*model.MedicalReport
	seq     sequence
}

func NewReportRepository() repository.ReportRepository {
	return &reportRepository{reports: make(map[int64]*model.MedicalReport)}
}

func (r *reportRepository) Create(ctx context.Context, report *model.MedicalReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	report.ID = r.seq.next()
	r.reports[report.ID] = report.Clone()
	return nil
}

func (r *reportRepository) Get(ctx context.Context, id int64) (*model.MedicalReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return report.Clone(), nil
}

func (r *reportRepository) Update(ctx context.Context, report *model.MedicalReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reports[report.ID]; !ok {
		return repository.ErrNotFound
	}
	r.reports[report.ID] = report.Clone()
	return nil
}

func (r *reportRepository) Delete(ctx context.Context, id int64) (*model.MedicalReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	report, ok := r.reports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.reports, id)
	return report, nil
}

func (r *reportRepository) List(ctx context.Context, filter model.ReportFilter) ([]*model.MedicalReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.MedicalReport, 0)
	for _, rep := range r.reports {
		if filter.PatientID != 0 && rep.PatientID != filter.PatientID {
			continue
		}
		if filter.AppointmentID != 0 && (rep.AppointmentID == nil || *rep.AppointmentID != filter.AppointmentID) {
			continue
		}
		result = append(result, rep.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
