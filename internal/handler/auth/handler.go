package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-portal/internal/handler"
	"github.com/jwalitptl/clinic-portal/internal/middleware"
	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/service/auth"
)

type Handler struct {
	svc *auth.Service
}

func NewHandler(svc *auth.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw *middleware.AuthMiddleware) {
	group := r.Group("/auth")
	{
		group.POST("/register", h.Register)
		group.POST("/login", h.Login)
		group.POST("/guest", h.Guest)
		group.POST("/logout", h.Logout)
		group.GET("/me", mw.Authenticate(), h.Me)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.Register(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, resp)
}

func (h *Handler) Guest(c *gin.Context) {
	resp, err := h.svc.GuestLogin(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, resp)
}

// Logout always succeeds; an unknown or expired token has nothing to revoke.
func (h *Handler) Logout(c *gin.Context) {
	if token, ok := middleware.BearerToken(c); ok {
		if err := h.svc.Logout(c.Request.Context(), token); err != nil {
			handler.RespondError(c, err)
			return
		}
	}
	handler.RespondMessage(c, "Logged out")
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.svc.CurrentUser(c.Request.Context(), c.GetString(middleware.ContextToken))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	if user == nil {
		handler.Respond(c, http.StatusOK, gin.H{"guest": true})
		return
	}
	handler.Respond(c, http.StatusOK, user)
}
