package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-portal/internal/handler"
	"github.com/jwalitptl/clinic-portal/internal/middleware"
	"github.com/jwalitptl/clinic-portal/pkg/metrics"
)

const APIVersion = "1.0"

// Handler is a resource handler that mounts its own routes, choosing the
// auth middleware each route needs.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup, *middleware.AuthMiddleware)
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	ops      *handler.Handler
	handlers []Handler
	metrics  *metrics.Metrics
}

type RouterConfig struct {
	// Mode is the gin mode; empty means release.
	Mode      string
	CORS      middleware.CORSConfig
	RateLimit *middleware.RateLimiterConfig
	Timeout   middleware.TimeoutConfig
	SizeLimit middleware.SizeLimitConfig
	Security  middleware.SecurityConfig
}

func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CORS:      middleware.DefaultCORSConfig(),
		Timeout:   middleware.DefaultTimeoutConfig(),
		SizeLimit: middleware.DefaultSizeLimitConfig(),
		Security:  middleware.DefaultSecurityConfig(),
	}
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	ops *handler.Handler,
	m *metrics.Metrics,
	config RouterConfig,
	handlers ...Handler,
) *Router {
	mode := config.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	if err := middleware.RegisterValidators(); err != nil {
		log.Fatal().Err(err).Msg("Failed to register request validators")
	}
	if m == nil {
		m = metrics.NewNop()
	}

	engine := gin.New()
	r := &Router{
		engine:   engine,
		auth:     auth,
		ops:      ops,
		handlers: handlers,
		metrics:  m,
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.SecurityHeaders(config.Security),
		middleware.CORS(config.CORS),
	)
	if config.RateLimit != nil {
		engine.Use(middleware.NewRateLimiter(*config.RateLimit).RateLimit())
	}
	engine.Use(
		middleware.Timeout(config.Timeout),
		middleware.SizeLimit(config.SizeLimit),
	)

	r.setup()
	return r
}

func (r *Router) setup() {
	r.engine.GET("/metrics", r.ops.MetricsHandler)

	api := r.engine.Group("/api/v1", middleware.Version(APIVersion))
	r.setupHealthCheck(api)

	for _, h := range r.handlers {
		h.RegisterRoutes(api, r.auth)
	}
}

func (r *Router) setupHealthCheck(rg *gin.RouterGroup) {
	health := rg.Group("/health")
	{
		health.GET("/live", r.ops.LivenessCheck)
		health.GET("/ready", r.ops.ReadinessCheck)
	}
	rg.GET("/metrics", r.ops.MetricsHandler)
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		r.metrics.HTTPRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		r.metrics.HTTPLatency.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
