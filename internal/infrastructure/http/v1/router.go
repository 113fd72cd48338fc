// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"fireblue/internal/core/apperror"
	"fireblue/internal/infrastructure/http/v1/handlers"
	"fireblue/internal/infrastructure/http/v1/middleware"
	"fireblue/internal/infrastructure/metrics"
	"fireblue/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Metrics is optional; when set /metrics is exposed and requests are counted.
	Metrics *metrics.Metrics

	// DB backs the readiness probe.
	DB handlers.Pinger
	// Broker is optional; its state is reported by /health/ready without
	// failing it.
	Broker handlers.Pinger

	Closings   handlers.ClosingService
	Production handlers.ProductionService

	// Audit is optional; enables GET /fechamentos/:id/historico.
	Audit handlers.AuditHistory

	// Location renders dates in spreadsheet exports.
	Location *time.Location

	CORSOrigins []string
	ServiceName string
	Version     string
	Development bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderRequestID, middleware.HeaderOperator},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.HeaderRequestID, middleware.HeaderTraceID},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if cfg.ServiceName != "" {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}
	router.Use(middleware.Trace())
	router.Use(middleware.Operator())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	router.Use(middleware.ErrorHandler())

	router.NoRoute(func(c *gin.Context) {
		_ = c.Error(apperror.NewNotFound("route", c.Request.Method+" "+c.Request.URL.Path))
	})

	// Health endpoints
	health := handlers.NewHealthHandler(cfg.Version,
		handlers.HealthCheck{Name: "database", Probe: cfg.DB},
		handlers.HealthCheck{Name: "kafka", Probe: cfg.Broker, Optional: true},
	)
	router.GET("/health/live", health.Live)
	router.GET("/health/ready", health.Ready)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	base := handlers.NewBaseHandler()
	api := router.Group("/api/v1")
	{
		handlers.NewClosingHandler(base, cfg.Closings, cfg.Audit, cfg.Location).
			RegisterRoutes(api.Group("/fechamentos"))
		handlers.NewTicketHandler(base, cfg.Production).
			RegisterRoutes(api.Group("/fichas"))
	}

	return router
}

// NewServer wraps the router in an http.Server with the service timeouts.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Generation of a busy week runs one savepoint per workshop.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}
}
