package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"agriloan/internal/deployment"
	domain "agriloan/internal/domain/application"
	"agriloan/internal/mlmodel"
	"agriloan/internal/monitor"
	"agriloan/internal/usecase/scope"

	"github.com/labstack/echo/v4"
)

type HealthService interface {
	CheckHealth(ctx context.Context) monitor.Snapshot
	Performance() monitor.Performance
	System(ctx context.Context) (monitor.SystemStats, error)
}

type DeploymentService interface {
	Deploy(ctx context.Context, path string) (mlmodel.Info, error)
	Rollback(ctx context.Context) (mlmodel.Info, error)
	Status(ctx context.Context) deployment.Status
}

type ModelStats interface {
	ModelMetrics(ctx context.Context) (domain.PredictionStats, error)
}

// ServingConfig is echoed back by the metrics endpoint.
type ServingConfig struct {
	ModelVersion      string
	PredictionTimeout time.Duration
}

type MonitoringHandler struct {
	health HealthService
	deploy DeploymentService
	stats  ModelStats
	cfg    ServingConfig
	now    func() time.Time
}

func NewMonitoringHandler(health HealthService, deploy DeploymentService, stats ModelStats, cfg ServingConfig) *MonitoringHandler {
	return &MonitoringHandler{health: health, deploy: deploy, stats: stats, cfg: cfg, now: time.Now}
}

func (h *MonitoringHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, h.health.CheckHealth(c.Request().Context()))
}

type metricsConfig struct {
	ModelVersion      string  `json:"model_version"`
	PredictionTimeout float64 `json:"prediction_timeout"`
}

type metricsResponse struct {
	Timestamp   time.Time              `json:"timestamp"`
	Performance monitor.Performance    `json:"performance"`
	System      *monitor.SystemStats   `json:"system,omitempty"`
	SystemError string                 `json:"system_error,omitempty"`
	Model       domain.PredictionStats `json:"model"`
	Config      metricsConfig          `json:"config"`
}

func (h *MonitoringHandler) Metrics(c echo.Context) error {
	ctx := c.Request().Context()
	out := metricsResponse{
		Timestamp:   h.now().UTC(),
		Performance: h.health.Performance(),
		Config: metricsConfig{
			ModelVersion:      h.cfg.ModelVersion,
			PredictionTimeout: h.cfg.PredictionTimeout.Seconds(),
		},
	}
	// a host sampling failure degrades the report, not the request
	if sys, err := h.health.System(ctx); err != nil {
		slog.Warn("system metrics unavailable", "err", err)
		out.SystemError = err.Error()
	} else {
		out.System = &sys
	}
	stats, err := h.stats.ModelMetrics(ctx)
	if err != nil {
		return respondError(c, err)
	}
	out.Model = stats
	return c.JSON(http.StatusOK, out)
}

func (h *MonitoringHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.deploy.Status(c.Request().Context()))
}

type deployReq struct {
	ModelPath string `json:"model_path" validate:"required"`
}

type deployResp struct {
	Message     string       `json:"message"`
	ModelInfo   mlmodel.Info `json:"model_info"`
	PerformedBy string       `json:"performed_by"`
	PerformedAt time.Time    `json:"performed_at"`
}

func (h *MonitoringHandler) Deploy(c echo.Context) error {
	a, err := currentActor(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := scope.Authorize(a, scope.ActionDeploy).Err(); err != nil {
		return respondError(c, err)
	}
	var req deployReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	info, err := h.deploy.Deploy(c.Request().Context(), req.ModelPath)
	if err != nil {
		return respondError(c, err)
	}
	slog.Info("model deployed", "path", req.ModelPath, "version", info.ModelVersion, "by", a.ID)
	return c.JSON(http.StatusOK, deployResp{
		Message:     "Model deployed successfully",
		ModelInfo:   info,
		PerformedBy: a.ID,
		PerformedAt: h.now().UTC(),
	})
}

func (h *MonitoringHandler) Rollback(c echo.Context) error {
	a, err := currentActor(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := scope.Authorize(a, scope.ActionDeploy).Err(); err != nil {
		return respondError(c, err)
	}
	info, err := h.deploy.Rollback(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	slog.Info("model rolled back", "version", info.ModelVersion, "by", a.ID)
	return c.JSON(http.StatusOK, deployResp{
		Message:     "Model rolled back successfully",
		ModelInfo:   info,
		PerformedBy: a.ID,
		PerformedAt: h.now().UTC(),
	})
}
