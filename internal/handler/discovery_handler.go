// internal/handler/discovery_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"serial-terminal/internal/model"
	"serial-terminal/internal/service"
	"serial-terminal/internal/utils"
)

const (
	defaultScanTimeout = 10 * time.Second
	maxScanTimeout     = 30 * time.Second
)

// DiscoveryHandler handles serial port discovery requests
type DiscoveryHandler struct {
	terminalService *service.TerminalService
	logger          *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(terminalService *service.TerminalService, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		terminalService: terminalService,
		logger:          utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// ScanPorts lists the serial ports present on the host
// @Summary Scan serial ports
// @Description Enumerate serial ports, with USB identifiers where the OS reports them
// @Tags Discovery
// @Produce json
// @Param timeout query string false "Scan timeout" default(10s)
// @Success 200 {object} utils.APIResponse{data=object{count=int,ports=[]model.PortDescriptor}} "Serial ports retrieved"
// @Failure 400 {object} utils.APIResponse "Invalid timeout"
// @Failure 500 {object} utils.APIResponse "Scan failed"
// @Router /ports [get]
func (h *DiscoveryHandler) ScanPorts(c *gin.Context) {
	timeout, err := time.ParseDuration(c.DefaultQuery("timeout", defaultScanTimeout.String()))
	if err != nil || timeout <= 0 {
		utils.ValidationErrorResponse(c, map[string]string{"timeout": "must be a positive duration"})
		return
	}
	if timeout > maxScanTimeout {
		timeout = maxScanTimeout
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	ports, err := h.terminalService.ListPorts(ctx)
	if err != nil {
		h.logger.Error("Failed to scan serial ports", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to scan serial ports", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Serial ports retrieved", gin.H{
		"count": len(ports),
		"ports": ports,
	})
}

// ListBaudRates returns the baud rate presets offered to operators
// @Summary Baud rate presets
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{baud_rates=[]int,default=int}} "Baud rates retrieved"
// @Router /baud-rates [get]
func (h *DiscoveryHandler) ListBaudRates(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Baud rates retrieved", gin.H{
		"baud_rates": model.BaudRates,
		"default":    model.DefaultBaudRate,
	})
}
