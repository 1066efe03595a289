package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	airformgin "github.com/pilab-dev/airform/api/gin"
	"github.com/pilab-dev/airform/config"
	"github.com/pilab-dev/airform/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const requestIDHeader = "X-Request-ID"

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// NewHTTPServer builds the gin router around api and wraps it in an http.Server.
func NewHTTPServer(cfg *config.ServerConfig, appLogger log.Logger, api *airformgin.API, health HealthCheck) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           NewRouter(cfg, appLogger, api, health),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Airtable calls are bounded by AIRTABLE_HTTP_TIMEOUT and a submission
		// may make up to three of them.
		WriteTimeout: 3*cfg.AirtableHTTPTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// NewRouter returns the gin engine with middleware, probes and API routes.
func NewRouter(cfg *config.ServerConfig, appLogger log.Logger, api *airformgin.API, health HealthCheck) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.OtelServiceName))
	router.Use(requestLogger(appLogger))
	router.Use(airformgin.SecurityHeadersMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		if health != nil {
			if err := health(c.Request.Context()); err != nil {
				appLogger.Error(c.Request.Context(), "health check failed", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if api != nil {
		api.RegisterRoutes(router)
	} else {
		appLogger.Warn(context.Background(), "no API provided, only probes are served")
	}

	return router
}

// requestLogger tags each request with an id, attaches a child logger to
// the request context and logs the outcome once the handler returns.
func requestLogger(appLogger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		reqLogger := appLogger.With(log.Fields{"request_id": requestID})
		zl := reqLogger.Zerolog()
		c.Request = c.Request.WithContext(zl.WithContext(c.Request.Context()))

		c.Next()

		// Query strings are left out: the OAuth callback carries the code and state.
		fields := log.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"route":      c.FullPath(),
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			reqLogger.Error(c.Request.Context(), "HTTP request", c.Errors.Last().Err, fields)
			return
		}
		reqLogger.Info(c.Request.Context(), "HTTP request", fields)
	}
}
