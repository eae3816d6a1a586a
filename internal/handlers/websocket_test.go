package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aditus/internal/common"
	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/aditus/internal/models"
	"github.com/ternarybob/aditus/internal/services/events"
	"github.com/ternarybob/arbor"
)

func dialTestSocket(t *testing.T, handler *WebSocketHandler) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWebSocketSendsInstanceIDAndSessionOnConnect(t *testing.T) {
	registry := &fakeRegistry{record: &models.SessionRecord{Token: "tok"}}
	handler := NewWebSocketHandler(nil, registry, arbor.NewLogger(), &common.WebSocketConfig{})

	conn := dialTestSocket(t, handler)

	hello := readMessage(t, conn)
	assert.Equal(t, "hello", hello.Type)
	payload := hello.Payload.(map[string]interface{})
	assert.NotEmpty(t, payload["serverInstanceId"])

	session := readMessage(t, conn)
	assert.Equal(t, "session", session.Type)
	sessionPayload := session.Payload.(map[string]interface{})
	assert.Equal(t, true, sessionPayload["active"])
}

func TestWebSocketBroadcastsPublishedEvents(t *testing.T) {
	eventService := events.NewService(arbor.NewLogger())
	defer eventService.Close()

	handler := NewWebSocketHandler(eventService, &fakeRegistry{}, arbor.NewLogger(), &common.WebSocketConfig{})
	conn := dialTestSocket(t, handler)

	// Drain connect messages.
	readMessage(t, conn)
	readMessage(t, conn)

	require.NoError(t, eventService.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventSSOSuccess,
		Payload: map[string]interface{}{"token": "tok"},
	}))

	msg := readMessage(t, conn)
	assert.Equal(t, "sso_success", msg.Type)
}

func TestWebSocketThrottlesStaleEvents(t *testing.T) {
	eventService := events.NewService(arbor.NewLogger())
	defer eventService.Close()

	handler := NewWebSocketHandler(eventService, &fakeRegistry{}, arbor.NewLogger(), &common.WebSocketConfig{
		ThrottleInterval: "1m",
	})
	conn := dialTestSocket(t, handler)
	readMessage(t, conn)
	readMessage(t, conn)

	for i := 0; i < 3; i++ {
		require.NoError(t, eventService.PublishSync(context.Background(), interfaces.Event{
			Type: interfaces.EventSessionStale,
		}))
	}

	// Only the first stale event inside the interval reaches the client.
	msg := readMessage(t, conn)
	assert.Equal(t, "session_stale", msg.Type)

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "second stale event must be throttled")
}

func TestWebSocketClientCountTracksDisconnects(t *testing.T) {
	handler := NewWebSocketHandler(nil, nil, arbor.NewLogger(), &common.WebSocketConfig{})

	conn := dialTestSocket(t, handler)
	require.Eventually(t, func() bool { return handler.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return handler.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}
