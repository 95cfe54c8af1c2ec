package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Routes groups everything Register needs. Auth must set the actor before
// Idempotency runs.
type Routes struct {
	Liveness     *LivenessHandler
	Applications *ApplicationHandler
	Monitoring   *MonitoringHandler
	Auth         echo.MiddlewareFunc
	Idempotency  echo.MiddlewareFunc
	Prometheus   http.Handler
}

func (r Routes) Register(e *echo.Echo) {
	e.GET("/health", r.Liveness.Health)
	if r.Prometheus != nil {
		e.GET("/metrics/prometheus", echo.WrapHandler(r.Prometheus))
	}

	mon := e.Group("/monitoring")
	mon.GET("/health", r.Monitoring.Health)
	mon.GET("/metrics", r.Monitoring.Metrics)
	mon.GET("/status", r.Monitoring.Status)
	mon.POST("/deploy", r.Monitoring.Deploy, r.Auth, r.Idempotency)
	mon.POST("/rollback", r.Monitoring.Rollback, r.Auth, r.Idempotency)

	apps := e.Group("/applications", r.Auth, r.Idempotency)
	apps.POST("", r.Applications.Submit)
	apps.GET("", r.Applications.List)
	apps.GET("/pending", r.Applications.Pending)
	apps.GET("/:id", r.Applications.Get)
	apps.POST("/:id/assign", r.Applications.Assign)
	apps.POST("/:id/decision", r.Applications.Decide)

	e.GET("/officers", r.Applications.Officers, r.Auth)
}
