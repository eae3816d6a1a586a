// -----------------------------------------------------------------------
// WebSocket push channel
//
// The console UI holds one socket open; settled logins, session changes
// and staleness warnings arrive here so the UI never polls.
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/aditus/internal/common"
	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope for every pushed message.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type WebSocketHandler struct {
	logger         arbor.ILogger
	clients        map[*websocket.Conn]bool
	clientMutex    map[*websocket.Conn]*sync.Mutex
	mu             sync.RWMutex
	events         interfaces.EventService
	registry       interfaces.SessionRegistry
	staleThrottler *rate.Limiter // Spacing for session_stale events, nil disables

	// Unique ID generated on startup - clients use to detect server restart
	serverInstanceID string
}

func NewWebSocketHandler(events interfaces.EventService, registry interfaces.SessionRegistry, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		events:           events,
		registry:         registry,
		serverInstanceID: uuid.New().String(),
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized")

	if config != nil && config.ThrottleInterval != "" {
		if duration, err := time.ParseDuration(config.ThrottleInterval); err == nil {
			h.staleThrottler = rate.NewLimiter(rate.Every(duration), 1)
			logger.Debug().Str("interval", config.ThrottleInterval).Msg("Throttler initialized for session_stale events")
		} else {
			logger.Warn().Err(err).Str("interval", config.ThrottleInterval).Msg("Failed to parse throttle interval - throttler disabled")
		}
	}

	if events != nil {
		h.subscribeToEvents()
	}

	return h
}

// subscribeToEvents forwards session lifecycle and log events to every client.
func (h *WebSocketHandler) subscribeToEvents() {
	forward := func(ctx context.Context, event interfaces.Event) error {
		h.Broadcast(string(event.Type), event.Payload)
		return nil
	}

	for _, eventType := range []interfaces.EventType{
		interfaces.EventSSOSuccess,
		interfaces.EventSSOError,
		interfaces.EventSSOWindowShown,
		interfaces.EventSessionCleared,
		interfaces.EventLogEntry,
	} {
		if err := h.events.Subscribe(eventType, forward); err != nil {
			h.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to subscribe")
		}
	}

	// The staleness probe can flap when the upstream is struggling; keep the
	// UI warning rate bounded.
	err := h.events.Subscribe(interfaces.EventSessionStale, func(ctx context.Context, event interfaces.Event) error {
		if h.staleThrottler != nil && !h.staleThrottler.Allow() {
			return nil
		}
		h.Broadcast(string(event.Type), event.Payload)
		return nil
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to subscribe to session_stale")
	}
}

// HandleWebSocket handles GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	// A fresh client gets the instance ID and the current session snapshot so
	// a reconnect after restart recovers state without polling.
	h.sendToClient(conn, WSMessage{
		Type: "hello",
		Payload: map[string]interface{}{
			"serverInstanceId": h.serverInstanceID,
		},
	})
	if h.registry != nil {
		record := h.registry.Get()
		h.sendToClient(conn, WSMessage{
			Type: "session",
			Payload: map[string]interface{}{
				"active":  !record.IsEmpty(),
				"session": record,
			},
		})
	}

	// Handle client disconnection
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", remaining)
	}()

	// Read messages from client (keep connection alive)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// Broadcast sends a message to all connected clients.
func (h *WebSocketHandler) Broadcast(messageType string, payload interface{}) {
	msg := WSMessage{
		Type:    messageType,
		Payload: payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", messageType).Msg("Failed to marshal websocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Str("type", messageType).Msg("Failed to send message to client")
		}
	}
}

func (h *WebSocketHandler) sendToClient(conn *websocket.Conn, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal websocket message")
		return
	}

	h.mu.RLock()
	mutex := h.clientMutex[conn]
	h.mu.RUnlock()
	if mutex == nil {
		return
	}

	mutex.Lock()
	conn.WriteMessage(websocket.TextMessage, data)
	mutex.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
