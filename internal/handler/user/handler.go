package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-portal/internal/handler"
	"github.com/jwalitptl/clinic-portal/internal/middleware"
	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/service/user"
	apperrors "github.com/jwalitptl/clinic-portal/pkg/errors"
)

type Handler struct {
	service *user.Service
}

func NewHandler(service *user.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw *middleware.AuthMiddleware) {
	r.GET("/doctors", mw.Authenticate(), h.ListDoctors)

	users := r.Group("/users", mw.Authenticate(), mw.DenyGuest())
	{
		users.GET("", mw.RequireRole(model.RoleDoctor), h.ListUsers)
		users.GET("/:id", h.GetUser)
		users.PATCH("/:id", h.UpdateUser)
	}
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.service.GetAll(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, users)
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.service.GetDoctors(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, doctors)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := handler.ParamID(c, "id", "user")
	if !ok {
		return
	}

	u, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, u)
}

// UpdateUser edits the caller's own profile.
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := handler.ParamID(c, "id", "user")
	if !ok {
		return
	}
	if middleware.SessionFrom(c).UserID != id {
		handler.RespondError(c, apperrors.Forbidden("You can only update your own profile"))
		return
	}

	var req model.UpdateUserRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	u, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, u)
}
