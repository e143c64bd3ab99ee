package server

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"echoes/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// listen serves api on a loopback port and returns its address.
func (a *testAPI) listen() string {
	a.t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(a.t, err)
	go func() { _ = a.app.Listener(ln) }()
	a.t.Cleanup(func() { _ = a.app.ShutdownWithTimeout(2 * time.Second) })
	return ln.Addr().String()
}

func dialNotifications(t *testing.T, addr, token string) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("ws://%s/api/ws/notifications?token=%s", addr, token)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev wsEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestWebsocket_PushesNotificationsAndUnreadCount(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice")
	bob := api.signup("bob")

	var post models.Post
	api.call(http.MethodPost, "/api/posts", alice.Token, fiber.Map{"content": "ping"}, http.StatusCreated, &post)

	conn := dialNotifications(t, api.listen(), alice.Token)

	seed := readEvent(t, conn)
	assert.Equal(t, EventUnreadCount, seed.Type)
	assert.JSONEq(t, `{"unread":0}`, string(seed.Payload))

	api.call(http.MethodPost, fmt.Sprintf("/api/posts/%d/like", post.ID), bob.Token, nil, http.StatusOK, nil)

	ev := readEvent(t, conn)
	require.Equal(t, "notification", ev.Type)
	var n models.Notification
	require.NoError(t, json.Unmarshal(ev.Payload, &n))
	assert.Equal(t, models.NotificationLike, n.Type)
	assert.Equal(t, alice.User.ID, n.UserID)
	require.NotNil(t, n.PostID)
	assert.Equal(t, post.ID, *n.PostID)

	api.call(http.MethodPatch, "/api/notifications/mark-all/read", alice.Token, nil, http.StatusOK, nil)

	ev = readEvent(t, conn)
	assert.Equal(t, EventUnreadCount, ev.Type)
	assert.JSONEq(t, `{"unread":0}`, string(ev.Payload))
}

func TestWebsocket_RejectsMissingToken(t *testing.T) {
	api := newTestAPI(t)
	addr := api.listen()

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/ws/notifications", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
