// internal/handler/websocket_types.go
package handler

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"serial-terminal/internal/model"
	"serial-terminal/internal/service"
)

// Message types pushed by the server
const (
	MessageTypeStatus = "status"
	MessageTypeRecord = "record"
	MessageTypeState  = "state"
	MessageTypeAck    = "ack"
	MessageTypeError  = "error"
	MessageTypePong   = "pong"
)

// Client represents a WebSocket client
type Client struct {
	ID          string          `json:"id"`
	Connection  *websocket.Conn `json:"-"`
	Send        chan []byte     `json:"-"`
	UserAgent   string          `json:"user_agent"`
	RemoteAddr  string          `json:"remote_addr"`
	ConnectedAt time.Time       `json:"connected_at"`
}

// WebSocketMessage is the envelope for server to client messages
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// ClientMessage is a command sent by a client. Data is decoded according to
// Type.
type ClientMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// ConnectionManager tracks WebSocket clients and fans terminal output out to
// them. It is registered with the terminal service as a listener.
type ConnectionManager struct {
	clients    map[string]*Client
	unregister chan *Client
	quit       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	logger     *zap.Logger
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(logger *zap.Logger) *ConnectionManager {
	manager := &ConnectionManager{
		clients:    make(map[string]*Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		logger:     logger,
	}

	go manager.run()
	return manager
}

func (cm *ConnectionManager) run() {
	for {
		select {
		case client := <-cm.unregister:
			cm.remove(client)

		case <-cm.quit:
			cm.mutex.Lock()
			for id, client := range cm.clients {
				delete(cm.clients, id)
				close(client.Send)
			}
			cm.mutex.Unlock()
			return
		}
	}
}

func (cm *ConnectionManager) remove(client *Client) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	if _, ok := cm.clients[client.ID]; ok {
		delete(cm.clients, client.ID)
		close(client.Send)
	}
}

// Register registers a new client. It is visible to SendTo and Broadcast
// once Register returns.
func (cm *ConnectionManager) Register(client *Client) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	select {
	case <-cm.quit:
		close(client.Send)
	default:
		cm.clients[client.ID] = client
	}
}

// Unregister unregisters a client
func (cm *ConnectionManager) Unregister(client *Client) {
	select {
	case cm.unregister <- client:
	case <-cm.quit:
	}
}

// Stop disconnects every client
func (cm *ConnectionManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.quit) })
}

// Count returns the number of connected clients
func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.clients)
}

// Broadcast queues message for every client. Slow clients lose messages
// rather than stall the drain loop.
func (cm *ConnectionManager) Broadcast(message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		cm.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	for _, client := range cm.clients {
		select {
		case client.Send <- messageBytes:
		default:
			cm.logger.Warn("Client send channel full during broadcast",
				zap.String("client_id", client.ID),
				zap.String("type", message.Type),
			)
		}
	}
}

// SendTo queues message for one client. Messages for clients that have
// already gone are dropped.
func (cm *ConnectionManager) SendTo(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		cm.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if _, ok := cm.clients[client.ID]; !ok {
		return
	}
	select {
	case client.Send <- messageBytes:
	default:
		cm.logger.Warn("Client send channel full, dropping message",
			zap.String("client_id", client.ID),
			zap.String("type", message.Type),
		)
	}
}

// OnRecord implements service.Listener
func (cm *ConnectionManager) OnRecord(rec model.Record) {
	cm.Broadcast(&WebSocketMessage{
		Type:      MessageTypeRecord,
		Data:      recordMessage{Record: rec, Line: rec.Line()},
		Timestamp: time.Now(),
	})
}

// OnState implements service.Listener
func (cm *ConnectionManager) OnState(ev service.StateEvent) {
	cm.Broadcast(&WebSocketMessage{
		Type:      MessageTypeState,
		Data:      ev,
		Timestamp: time.Now(),
	})
}

// recordMessage adds the rendered log line to a record
type recordMessage struct {
	model.Record
	Line string `json:"line"`
}
