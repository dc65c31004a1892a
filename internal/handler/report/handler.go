package report

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-portal/internal/handler"
	"github.com/jwalitptl/clinic-portal/internal/middleware"
	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/service/report"
	apperrors "github.com/jwalitptl/clinic-portal/pkg/errors"
)

type Handler struct {
	service *report.Service
}

func NewHandler(service *report.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw *middleware.AuthMiddleware) {
	reports := r.Group("/reports", mw.Authenticate(), mw.DenyGuest())
	{
		reports.GET("", h.ListReports)
		reports.POST("", h.UploadReport)
		reports.GET("/:id", h.GetReport)
		reports.PATCH("/:id", h.UpdateReport)
		reports.DELETE("/:id", h.DeleteReport)
	}
}

func (h *Handler) ListReports(c *gin.Context) {
	patientID, ok := handler.QueryID(c, "patientId")
	if !ok {
		return
	}
	appointmentID, ok := handler.QueryID(c, "appointmentId")
	if !ok {
		return
	}

	session := middleware.SessionFrom(c)
	if session.Role == model.RolePatient {
		if patientID != 0 && patientID != session.UserID {
			handler.RespondError(c, apperrors.Forbidden("Permission denied"))
			return
		}
		patientID = session.UserID
	}

	ctx := c.Request.Context()
	var (
		reports []*model.MedicalReport
		err     error
	)
	switch {
	case patientID != 0:
		reports, err = h.service.GetByPatientID(ctx, patientID)
	case appointmentID != 0:
		reports, err = h.service.GetByAppointmentID(ctx, appointmentID)
	default:
		reports, err = h.service.GetAll(ctx)
	}
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	if patientID != 0 && appointmentID != 0 {
		filtered := reports[:0]
		for _, r := range reports {
			if r.AppointmentID != nil && *r.AppointmentID == appointmentID {
				filtered = append(filtered, r)
			}
		}
		reports = filtered
	}
	handler.Respond(c, http.StatusOK, reports)
}

// UploadReport accepts a multipart form with the file under "file". Patients
// upload for themselves; doctors must name the patient.
func (h *Handler) UploadReport(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		handler.RespondError(c, apperrors.NewValidation("file is required"))
		return
	}

	session := middleware.SessionFrom(c)
	patientID, ok := formID(c, "patientId")
	if !ok {
		return
	}
	if patientID == 0 && session.Role == model.RolePatient {
		patientID = session.UserID
	}
	if patientID == 0 {
		handler.RespondError(c, apperrors.NewValidation("patientId is required"))
		return
	}
	if !handler.RequirePatientAccess(c, session, patientID) {
		return
	}

	appointmentID, ok := formID(c, "appointmentId")
	if !ok {
		return
	}
	var appointmentRef *int64
	if appointmentID > 0 {
		appointmentRef = &appointmentID
	}

	meta := model.FileMeta{
		Name:     file.Filename,
		MIMEType: file.Header.Get("Content-Type"),
		Size:     file.Size,
	}
	created, err := h.service.UploadFile(c.Request.Context(), meta, patientID, appointmentRef)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusCreated, created)
}

func formID(c *gin.Context, name string) (int64, bool) {
	raw := c.PostForm(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		handler.RespondError(c, apperrors.NewBadRequest("Invalid "+name, err))
		return 0, false
	}
	return id, true
}

func (h *Handler) load(c *gin.Context) (*model.MedicalReport, bool) {
	id, ok := handler.ParamID(c, "id", "report")
	if !ok {
		return nil, false
	}

	r, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return nil, false
	}
	if !handler.RequirePatientAccess(c, middleware.SessionFrom(c), r.PatientID) {
		return nil, false
	}
	return r, true
}

func (h *Handler) GetReport(c *gin.Context) {
	r, ok := h.load(c)
	if !ok {
		return
	}
	handler.Respond(c, http.StatusOK, r)
}

func (h *Handler) UpdateReport(c *gin.Context) {
	current, ok := h.load(c)
	if !ok {
		return
	}

	var req model.UpdateReportRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	updated, err := h.service.Update(c.Request.Context(), current.ID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, updated)
}

func (h *Handler) DeleteReport(c *gin.Context) {
	current, ok := h.load(c)
	if !ok {
		return
	}

	removed, err := h.service.Delete(c.Request.Context(), current.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, removed)
}
