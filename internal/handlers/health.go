package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AshramC/YXZX-ARG/pkg/storage"
)

type HealthResponse struct {
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Service    string                 `json:"service"`
	Components map[string]interface{} `json:"components"`
}

type HealthHandler struct {
	kv     storage.KV
	logger *slog.Logger
}

func NewHealthHandler(kv storage.KV, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		kv:     kv,
		logger: logger,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	h.logger.Debug("Health check requested", "remote_addr", c.ClientIP())

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	components := make(map[string]interface{})
	overallStatus := "healthy"

	if err := h.kv.Ping(ctx); err != nil {
		h.logger.Warn("Save store health check failed", "error", err)
		components["store"] = "unhealthy"
		overallStatus = "degraded"
	} else {
		components["store"] = "healthy"
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Service:    "yxzx-arg",
		Components: components,
	})
}
