package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/caddie-engine/internal/learning"
	"github.com/stitts-dev/caddie-engine/internal/storage"
)

// HealthStatus is the health endpoint payload.
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store     storage.Store
	telemetry *learning.TelemetryStore
	logger    logrus.FieldLogger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store storage.Store, telemetry *learning.TelemetryStore, logger logrus.FieldLogger) *HealthHandler {
	return &HealthHandler{
		store:     store,
		telemetry: telemetry,
		logger:    logger,
	}
}

// GetHealth returns the basic health status
func (h *HealthHandler) GetHealth(c *gin.Context) {
	response := HealthStatus{
		Status:    "ok",
		Service:   "caddie-engine",
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]string),
	}

	if _, _, err := h.store.Get(c.Request.Context(), "health.probe"); err != nil {
		response.Status = "unhealthy"
		response.Checks["store"] = "failed: " + err.Error()
	} else {
		response.Checks["store"] = "ok"
	}

	if h.telemetry != nil {
		if err := h.telemetry.Ping(c.Request.Context()); err != nil {
			response.Status = "unhealthy"
			response.Checks["telemetry"] = "failed: " + err.Error()
		} else {
			response.Checks["telemetry"] = "ok"
		}
	}

	statusCode := http.StatusOK
	if response.Status != "ok" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
