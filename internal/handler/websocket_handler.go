// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"serial-terminal/internal/config"
	"serial-terminal/internal/model"
	"serial-terminal/internal/service"
	"serial-terminal/internal/utils"
)

const (
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = 54 * time.Second
	wsWriteWait      = 10 * time.Second
	wsCommandTimeout = 30 * time.Second
	wsSendBuffer     = 256
)

// WebSocketHandler streams terminal output to WebSocket clients and accepts
// terminal commands from them
type WebSocketHandler struct {
	upgrader        websocket.Upgrader
	connections     *ConnectionManager
	terminalService *service.TerminalService
	listenerID      uuid.UUID
	logger          *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler and subscribes it to
// terminal output
func NewWebSocketHandler(
	terminalService *service.TerminalService,
	security *config.SecurityConfig,
	logger *zap.Logger,
) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(security.AllowedOrigins),
	}

	handler := &WebSocketHandler{
		upgrader:        upgrader,
		connections:     NewConnectionManager(logger),
		terminalService: terminalService,
		logger:          utils.NewServiceLogger(logger, "websocket-handler"),
	}
	handler.listenerID = terminalService.Subscribe(handler.connections)

	return handler
}

// originChecker allows any origin when none are configured
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleTerminalConnection upgrades the request and attaches the client to
// the terminal stream
func (h *WebSocketHandler) HandleTerminalConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, wsSendBuffer),
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.connections.Register(client)
	h.logger.Info("Terminal WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	h.connections.SendTo(client, &WebSocketMessage{
		Type:      MessageTypeStatus,
		Data:      h.terminalService.Status(),
		Timestamp: time.Now(),
	})

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// Close detaches the handler from the terminal and disconnects every client
func (h *WebSocketHandler) Close() {
	h.terminalService.Unsubscribe(h.listenerID)
	h.connections.Stop()
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	return h.connections.Count()
}

func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
		h.logger.Info("Terminal WebSocket client disconnected", zap.String("client_id", client.ID))
	}()

	client.Connection.SetReadDeadline(time.Now().Add(wsPongWait))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		var message ClientMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.logger.Warn("Failed to parse WebSocket message",
				zap.Error(err),
				zap.String("client_id", client.ID),
			)
			h.sendError(client, "", "INVALID_MESSAGE", "message is not valid JSON")
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage runs one client command. Commands run on the read
// goroutine so a client's commands apply in the order it sent them.
func (h *WebSocketHandler) handleClientMessage(client *Client, message *ClientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), wsCommandTimeout)
	defer cancel()

	var (
		result interface{}
		err    error
	)

	switch message.Type {
	case "ping":
		h.connections.SendTo(client, &WebSocketMessage{
			Type:      MessageTypePong,
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
		return

	case "status":
		result = h.terminalService.Status()

	case "send":
		var req SendRequest
		if err := decodeData(message.Data, &req); err != nil {
			h.sendError(client, message.RequestID, "INVALID_MESSAGE", err.Error())
			return
		}
		err = h.terminalService.Send(ctx, req.Text)
		result = map[string]interface{}{"mode": h.terminalService.Mode()}

	case "connect":
		var req ConnectRequest
		if err := decodeData(message.Data, &req); err != nil {
			h.sendError(client, message.RequestID, "INVALID_MESSAGE", err.Error())
			return
		}
		cfg, cfgErr := req.ConnectionConfig()
		if cfgErr != nil {
			h.sendError(client, message.RequestID, "VALIDATION_ERROR", cfgErr.Error())
			return
		}
		result, err = h.terminalService.Open(ctx, cfg)

	case "disconnect":
		err = h.terminalService.Close()

	case "set_mode":
		var req ModeRequest
		if err := decodeData(message.Data, &req); err != nil {
			h.sendError(client, message.RequestID, "INVALID_MESSAGE", err.Error())
			return
		}
		mode, modeErr := model.ParseDisplayMode(req.Mode)
		if modeErr != nil {
			h.sendError(client, message.RequestID, "VALIDATION_ERROR", modeErr.Error())
			return
		}
		h.terminalService.SetMode(mode)
		result = map[string]interface{}{"mode": mode}

	case "set_timestamps":
		var req TimestampsRequest
		if err := decodeData(message.Data, &req); err != nil || req.Enabled == nil {
			h.sendError(client, message.RequestID, "INVALID_MESSAGE", "enabled is required")
			return
		}
		h.terminalService.SetTimestamps(*req.Enabled)
		result = map[string]interface{}{"enabled": *req.Enabled}

	default:
		h.logger.Warn("Unknown message type",
			zap.String("type", message.Type),
			zap.String("client_id", client.ID),
		)
		h.sendError(client, message.RequestID, "UNKNOWN_MESSAGE", fmt.Sprintf("unknown message type: %s", message.Type))
		return
	}

	if err != nil {
		_, code := terminalErrorStatus(err)
		h.sendError(client, message.RequestID, code, err.Error())
		return
	}

	h.connections.SendTo(client, &WebSocketMessage{
		Type: MessageTypeAck,
		Data: map[string]interface{}{
			"command": message.Type,
			"result":  result,
		},
		Timestamp: time.Now(),
		RequestID: message.RequestID,
	})
}

func (h *WebSocketHandler) sendError(client *Client, requestID, code, errorMsg string) {
	h.connections.SendTo(client, &WebSocketMessage{
		Type: MessageTypeError,
		Data: map[string]interface{}{
			"code":  code,
			"error": errorMsg,
		},
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid data: %w", err)
	}
	return nil
}
