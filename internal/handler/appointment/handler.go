package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-portal/internal/handler"
	"github.com/jwalitptl/clinic-portal/internal/middleware"
	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/service/appointment"
	apperrors "github.com/jwalitptl/clinic-portal/pkg/errors"
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw *middleware.AuthMiddleware) {
	appointments := r.Group("/appointments", mw.Authenticate())
	{
		// Open to guests.
		appointments.GET("/services", h.ListServices)
		appointments.GET("/available-slots", h.AvailableSlots)

		members := appointments.Group("", mw.DenyGuest())
		members.GET("", h.ListAppointments)
		members.GET("/today", mw.RequireRole(model.RoleDoctor), h.Today)
		members.POST("", mw.RequireRole(model.RolePatient), h.CreateAppointment)
		members.GET("/:id", h.GetAppointment)
		members.PATCH("/:id", h.UpdateAppointment)
		members.DELETE("/:id", h.DeleteAppointment)
		members.POST("/:id/complete", mw.RequireRole(model.RoleDoctor), h.CompleteAppointment)
		members.POST("/:id/cancel", h.CancelAppointment)
	}
}

func (h *Handler) ListAppointments(c *gin.Context) {
	patientID, ok := handler.QueryID(c, "patientId")
	if !ok {
		return
	}
	doctorID, ok := handler.QueryID(c, "doctorId")
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
		appointments []*model.Appointment
		err          error
	)
	switch {
	case patientID != 0:
		appointments, err = h.service.GetByPatientID(ctx, patientID)
	case doctorID != 0:
		appointments, err = h.service.GetByDoctorID(ctx, doctorID)
	default:
		appointments, err = h.service.GetAll(ctx)
	}
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	if patientID != 0 && doctorID != 0 {
		filtered := appointments[:0]
		for _, a := range appointments {
			if a.DoctorID == doctorID {
				filtered = append(filtered, a)
			}
		}
		appointments = filtered
	}
	handler.Respond(c, http.StatusOK, appointments)
}

// Today lists the doctor's appointments for the clinic's current date. The
// caller's own schedule is used unless doctorId is given.
func (h *Handler) Today(c *gin.Context) {
	doctorID, ok := handler.QueryID(c, "doctorId")
	if !ok {
		return
	}
	if doctorID == 0 {
		doctorID = middleware.SessionFrom(c).UserID
	}

	appointments, err := h.service.GetTodaysAppointments(c.Request.Context(), doctorID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, appointments)
}

func (h *Handler) ListServices(c *gin.Context) {
	handler.Respond(c, http.StatusOK, h.service.GetServices())
}

func (h *Handler) AvailableSlots(c *gin.Context) {
	doctorID, ok := handler.QueryID(c, "doctorId")
	if !ok {
		return
	}

	slots, err := h.service.GetAvailableTimeSlots(c.Request.Context(), c.Query("date"), doctorID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, slots)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	if req.PatientID != middleware.SessionFrom(c).UserID {
		handler.RespondError(c, apperrors.Forbidden("You can only book appointments for yourself"))
		return
	}

	appointment, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusCreated, appointment)
}

// load fetches the appointment named by :id and checks the caller may see it.
func (h *Handler) load(c *gin.Context) (*model.Appointment, bool) {
	id, ok := handler.ParamID(c, "id", "appointment")
	if !ok {
		return nil, false
	}

	appointment, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return nil, false
	}
	if !handler.RequirePatientAccess(c, middleware.SessionFrom(c), appointment.PatientID) {
		return nil, false
	}
	return appointment, true
}

func (h *Handler) GetAppointment(c *gin.Context) {
	appointment, ok := h.load(c)
	if !ok {
		return
	}
	handler.Respond(c, http.StatusOK, appointment)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	current, ok := h.load(c)
	if !ok {
		return
	}

	var req model.UpdateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	isDoctor := middleware.SessionFrom(c).Role == model.RoleDoctor
	if req.Status != nil && *req.Status == model.AppointmentStatusCompleted && !isDoctor {
		handler.RespondError(c, apperrors.Forbidden("Only doctors can complete appointments"))
		return
	}
	if req.Notes != nil && !isDoctor {
		handler.RespondError(c, apperrors.Forbidden("Only doctors can edit appointment notes"))
		return
	}

	appointment, err := h.service.Update(c.Request.Context(), current.ID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, appointment)
}

func (h *Handler) CompleteAppointment(c *gin.Context) {
	current, ok := h.load(c)
	if !ok {
		return
	}

	var req model.CompleteAppointmentRequest
	if c.Request.ContentLength != 0 && !handler.BindJSON(c, &req) {
		return
	}

	appointment, err := h.service.Complete(c.Request.Context(), current.ID, req.Notes)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, appointment)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	current, ok := h.load(c)
	if !ok {
		return
	}

	appointment, err := h.service.Cancel(c.Request.Context(), current.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, appointment)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
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
