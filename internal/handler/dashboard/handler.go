package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-portal/internal/handler"
	"github.com/jwalitptl/clinic-portal/internal/middleware"
	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/service/appointment"
)

type Handler struct {
	appointments *appointment.Service
}

func NewHandler(appointments *appointment.Service) *Handler {
	return &Handler{appointments: appointments}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw *middleware.AuthMiddleware) {
	dashboard := r.Group("/dashboard", mw.Authenticate())
	{
		dashboard.GET("/doctor", mw.RequireRole(model.RoleDoctor), h.Doctor)
		dashboard.GET("/patient", mw.RequireRole(model.RolePatient), h.Patient)
	}
}

func (h *Handler) Doctor(c *gin.Context) {
	summary, err := h.appointments.DoctorDashboard(c.Request.Context(), middleware.SessionFrom(c).UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, summary)
}

func (h *Handler) Patient(c *gin.Context) {
	overview, err := h.appointments.PatientOverview(c.Request.Context(), middleware.SessionFrom(c).UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, overview)
}
