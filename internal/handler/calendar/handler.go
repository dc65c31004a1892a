package calendar

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-portal/internal/calendar"
	"github.com/jwalitptl/clinic-portal/internal/handler"
	"github.com/jwalitptl/clinic-portal/internal/middleware"
	apperrors "github.com/jwalitptl/clinic-portal/pkg/errors"
)

type Handler struct {
	now func() time.Time
	loc *time.Location
}

// NewHandler builds the calendar handler. Today is taken from now in loc.
func NewHandler(now func() time.Time, loc *time.Location) *Handler {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{now: now, loc: loc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw *middleware.AuthMiddleware) {
	r.GET("/calendar", mw.Authenticate(), h.Month)
}

// Month renders ?month=YYYY-MM, defaulting to the current month. Past days
// are disabled.
func (h *Handler) Month(c *gin.Context) {
	today := h.now().In(h.loc)

	month := today
	if raw := c.Query("month"); raw != "" {
		parsed, err := calendar.ParseMonth(raw)
		if err != nil {
			handler.RespondError(c, apperrors.NewValidation("month must be a YYYY-MM month"))
			return
		}
		month = parsed
	}

	handler.Respond(c, http.StatusOK, calendar.MonthGrid(month, today))
}
