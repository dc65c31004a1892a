package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the operational endpoints.
type Handler struct {
	ready    func(ctx context.Context) error
	gatherer prometheus.Gatherer
}

// NewHandler creates the ops handler. ready may be nil when the backend has
// no health probe.
func NewHandler(ready func(ctx context.Context) error, gatherer prometheus.Gatherer) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{ready: ready, gatherer: gatherer}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	Respond(c, http.StatusOK, gin.H{
		"status": "alive",
		"time":   time.Now().UTC(),
	})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, NewErrorResponse("not ready"))
			return
		}
	}
	Respond(c, http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().UTC(),
	})
}

func (h *Handler) MetricsHandler(c *gin.Context) {
	promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}).ServeHTTP(c.Writer, c.Request)
}
