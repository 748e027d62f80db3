// internal/handler/terminal_handler.go
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"serial-terminal/internal/codec"
	"serial-terminal/internal/model"
	"serial-terminal/internal/service"
	"serial-terminal/internal/terminal"
	"serial-terminal/internal/utils"
)

const (
	defaultRecordLimit = 500
	maxRecordLimit     = 5000
)

// TerminalHandler exposes the terminal service over REST
type TerminalHandler struct {
	terminalService *service.TerminalService
	logger          *utils.ServiceLogger
}

// NewTerminalHandler creates a new terminal handler
func NewTerminalHandler(terminalService *service.TerminalService, logger *zap.Logger) *TerminalHandler {
	return &TerminalHandler{
		terminalService: terminalService,
		logger:          utils.NewServiceLogger(logger, "terminal-handler"),
	}
}

// ConnectRequest opens a serial link. Omitted fields use configured defaults.
type ConnectRequest struct {
	Port        string `json:"port"`
	BaudRate    int    `json:"baud_rate"`
	DataBits    int    `json:"data_bits"`
	StopBits    int    `json:"stop_bits"`
	Parity      string `json:"parity"`
	ReadTimeout string `json:"read_timeout"`
}

// ConnectionConfig converts the request into a connection config
func (r ConnectRequest) ConnectionConfig() (model.ConnectionConfig, error) {
	cfg := model.ConnectionConfig{
		Port:     r.Port,
		BaudRate: r.BaudRate,
		DataBits: r.DataBits,
		StopBits: r.StopBits,
		Parity:   r.Parity,
	}
	if r.ReadTimeout != "" {
		d, err := time.ParseDuration(r.ReadTimeout)
		if err != nil {
			return cfg, fmt.Errorf("invalid read_timeout: %w", err)
		}
		cfg.ReadTimeout = d
	}
	return cfg, nil
}

// SendRequest carries text to write, interpreted with the current display mode
type SendRequest struct {
	Text string `json:"text"`
}

// ModeRequest switches the display mode
type ModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// TimestampsRequest toggles timestamping
type TimestampsRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// GetStatus returns the terminal status
func (h *TerminalHandler) GetStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Terminal status retrieved", h.terminalService.Status())
}

// Connect opens a serial link, replacing any open one
func (h *TerminalHandler) Connect(c *gin.Context) {
	var req ConnectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	cfg, err := req.ConnectionConfig()
	if err != nil {
		utils.ValidationErrorResponse(c, map[string]string{"read_timeout": err.Error()})
		return
	}

	handle, err := h.terminalService.Open(c.Request.Context(), cfg)
	if err != nil {
		writeTerminalError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Serial port opened", handle)
}

// Disconnect closes the serial link
func (h *TerminalHandler) Disconnect(c *gin.Context) {
	if err := h.terminalService.Close(); err != nil {
		writeTerminalError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Serial port closed", h.terminalService.Status())
}

// Send writes text to the open link
func (h *TerminalHandler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.terminalService.Send(c.Request.Context(), req.Text); err != nil {
		writeTerminalError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Data sent", gin.H{
		"mode": h.terminalService.Mode(),
	})
}

// SetMode switches between ASCII and HEX
func (h *TerminalHandler) SetMode(c *gin.Context) {
	var req ModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	mode, err := model.ParseDisplayMode(req.Mode)
	if err != nil {
		utils.ValidationErrorResponse(c, map[string]string{"mode": err.Error()})
		return
	}

	h.terminalService.SetMode(mode)
	utils.SuccessResponse(c, http.StatusOK, "Display mode updated", gin.H{"mode": mode})
}

// SetTimestamps toggles timestamping of new events
func (h *TerminalHandler) SetTimestamps(c *gin.Context) {
	var req TimestampsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.terminalService.SetTimestamps(*req.Enabled)
	utils.SuccessResponse(c, http.StatusOK, "Timestamping updated", gin.H{"enabled": *req.Enabled})
}

// GetRecords pages through the display log
func (h *TerminalHandler) GetRecords(c *gin.Context) {
	after, err := strconv.ParseUint(c.DefaultQuery("after", "0"), 10, 64)
	if err != nil {
		utils.ValidationErrorResponse(c, map[string]string{"after": "must be a non-negative integer"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRecordLimit)))
	if err != nil || limit <= 0 {
		utils.ValidationErrorResponse(c, map[string]string{"limit": "must be a positive integer"})
		return
	}
	if limit > maxRecordLimit {
		limit = maxRecordLimit
	}

	records := h.terminalService.Records(after, limit)
	next := after
	if n := len(records); n > 0 {
		next = records[n-1].Seq
	}

	utils.SuccessResponse(c, http.StatusOK, "Records retrieved", gin.H{
		"records": records,
		"count":   len(records),
		"next":    next,
	})
}

// terminalErrorStatus maps engine errors onto HTTP status and error code
func terminalErrorStatus(err error) (int, string) {
	var (
		hexErr   *codec.InvalidHexError
		openErr  *terminal.OpenError
		sendErr  *terminal.SendError
		closeErr *terminal.CloseError
	)

	switch {
	case errors.As(err, &hexErr):
		return http.StatusBadRequest, "INVALID_HEX"
	case errors.Is(err, terminal.ErrEmptyPayload):
		return http.StatusBadRequest, "EMPTY_PAYLOAD"
	case errors.Is(err, codec.ErrUnencodable):
		return http.StatusBadRequest, "UNENCODABLE_TEXT"
	case errors.Is(err, terminal.ErrNotOpen):
		return http.StatusConflict, "PORT_NOT_OPEN"
	case errors.Is(err, terminal.ErrOpenAborted):
		return http.StatusConflict, "OPEN_ABORTED"
	case errors.As(err, &sendErr):
		return http.StatusBadGateway, "DEVICE_IO_ERROR"
	case errors.As(err, &closeErr):
		return http.StatusBadGateway, "CLOSE_FAILED"
	case errors.As(err, &openErr):
		switch openErr.Reason {
		case terminal.OpenBusy:
			return http.StatusConflict, "PORT_BUSY"
		case terminal.OpenNotFound:
			return http.StatusNotFound, "PORT_NOT_FOUND"
		case terminal.OpenPermissionDenied:
			return http.StatusForbidden, "PERMISSION_DENIED"
		case terminal.OpenInvalidConfig:
			return http.StatusBadRequest, "INVALID_CONFIG"
		default:
			return http.StatusBadGateway, "OPEN_FAILED"
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"
	}
}

func writeTerminalError(c *gin.Context, err error) {
	status, code := terminalErrorStatus(err)
	utils.ErrorResponseWithCode(c, status, code, errorMessage(code), err)
}

func errorMessage(code string) string {
	switch code {
	case "INVALID_HEX":
		return "Input is not valid hex"
	case "EMPTY_PAYLOAD":
		return "Nothing to send"
	case "UNENCODABLE_TEXT":
		return "Text cannot be encoded in the configured charset"
	case "PORT_NOT_OPEN":
		return "Serial port is not open"
	case "DEVICE_IO_ERROR":
		return "Write to serial port failed; connection closed"
	case "CLOSE_FAILED":
		return "Serial port closed with an error"
	case "PORT_BUSY":
		return "Serial port is in use"
	case "PORT_NOT_FOUND":
		return "Serial port not found"
	case "PERMISSION_DENIED":
		return "Permission denied opening serial port"
	case "INVALID_CONFIG":
		return "Invalid connection settings"
	case "OPEN_FAILED":
		return "Failed to open serial port"
	default:
		return "Request failed"
	}
}
