// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"serial-terminal/internal/config"
	"serial-terminal/internal/model"
	"serial-terminal/internal/service"
	"serial-terminal/internal/utils"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	terminalService *service.TerminalService
	config          *config.Config
	logger          *utils.ServiceLogger
	startedAt       time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(terminalService *service.TerminalService, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		terminalService: terminalService,
		config:          config,
		logger:          utils.NewServiceLogger(logger, "health-handler"),
		startedAt:       time.Now(),
	}
}

// HealthCheck reports service health. A closed link is not unhealthy unless
// the service was configured to hold one open.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := h.terminalService.Status()

	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	link := CheckResult{
		Status: "healthy",
		Data: map[string]interface{}{
			"state": status.State,
		},
	}
	if status.Handle != nil {
		link.Message = status.Handle.Config.String()
	}
	if status.LastError != "" {
		link.Data["last_error"] = status.LastError
	}
	if h.config.Serial.AutoOpen && status.State != model.StateOpen {
		link.Status = "degraded"
		link.Message = "configured port is not open"
		health.Status = "degraded"
	}
	health.Checks["serial_link"] = link

	health.Checks["event_queue"] = CheckResult{
		Status: "healthy",
		Data: map[string]interface{}{
			"pending":  status.Pending,
			"last_seq": status.LastSeq,
		},
	}

	c.JSON(http.StatusOK, health)
}

// ReadinessCheck reports ready once the service is wired
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if h.terminalService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "terminal service not available",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck reports the process is alive
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
