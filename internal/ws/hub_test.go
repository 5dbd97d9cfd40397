package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatspark/internal/domain"
	"chatspark/internal/presence"
)

// connPair dials the test server and returns the client and server ends.
func connPair(t *testing.T, srv *httptest.Server, serverConns <-chan *websocket.Conn) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case server := <-serverConns:
		return client, server
	case <-time.After(time.Second):
		t.Fatal("server connection not received")
		return nil, nil
	}
}

func newHubFixture(t *testing.T) (*Hub, *presence.Memory, *httptest.Server, <-chan *websocket.Conn) {
	t.Helper()

	online := presence.NewMemory()
	hub := NewHub(online, zerolog.Nop())

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	serverConns := make(chan *websocket.Conn, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	return hub, online, srv, serverConns
}

func TestRegisterEvictsPreviousConnection(t *testing.T) {
	ctx := context.Background()
	hub, online, srv, serverConns := newHubFixture(t)

	client1, server1 := connPair(t, srv, serverConns)
	_, server2 := connPair(t, srv, serverConns)

	hub.Register(ctx, 1, server1)
	hub.Register(ctx, 1, server2)

	// The first connection is closed; its client read fails.
	client1.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := client1.ReadMessage()
	assert.Error(t, err)

	ok, err := online.Contains(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, hub.IsConnected(1))

	// Teardown of the evicted connection must not remove the user's
	// presence; the replacement owns it now.
	hub.Unregister(ctx, 1, server1)
	ok, err = online.Contains(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, hub.IsConnected(1))

	hub.Unregister(ctx, 1, server2)
	ok, err = online.Contains(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, hub.IsConnected(1))
}

func TestPresenceLifecycle(t *testing.T) {
	ctx := context.Background()
	hub, online, srv, serverConns := newHubFixture(t)

	_, server := connPair(t, srv, serverConns)

	hub.Register(ctx, 5, server)
	n, err := online.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	hub.Unregister(ctx, 5, server)
	n, err = online.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestDeliverMessage(t *testing.T) {
	ctx := context.Background()
	hub, _, srv, serverConns := newHubFixture(t)

	client, server := connPair(t, srv, serverConns)
	hub.Register(ctx, 2, server)

	hub.DeliverMessage(&domain.Message{ID: 1, ConversationID: 10, SenderID: 1, ReceiverID: 2, Content: "hi"})

	client.SetReadDeadline(time.Now().Add(time.Second))
	var payload map[string]any
	require.NoError(t, client.ReadJSON(&payload))
	assert.Equal(t, "message_received", payload["type"])
	assert.Equal(t, float64(10), payload["conversationId"])
}

func TestDeliverToOfflineUserIsNoop(t *testing.T) {
	hub, _, _, _ := newHubFixture(t)

	// Must not panic or block.
	hub.DeliverMessage(&domain.Message{ID: 1, ConversationID: 10, ReceiverID: 42})
}

func TestBroadcastToRoom(t *testing.T) {
	ctx := context.Background()
	hub, _, srv, serverConns := newHubFixture(t)

	clientA, serverA := connPair(t, srv, serverConns)
	clientB, serverB := connPair(t, srv, serverConns)
	hub.Register(ctx, 1, serverA)
	hub.Register(ctx, 2, serverB)

	// Drain the user_online broadcast A receives when B registers.
	clientA.SetReadDeadline(time.Now().Add(time.Second))
	var online map[string]any
	require.NoError(t, clientA.ReadJSON(&online))
	assert.Equal(t, "user_online", online["type"])

	hub.JoinRoom(10, 1)
	hub.JoinRoom(10, 2)

	hub.BroadcastToRoom(10, 1, map[string]any{"type": "user_typing", "userId": int64(1)})

	clientB.SetReadDeadline(time.Now().Add(time.Second))
	var payload map[string]any
	require.NoError(t, clientB.ReadJSON(&payload))
	assert.Equal(t, "user_typing", payload["type"])

	// The sender is excluded from the room broadcast.
	clientA.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := clientA.ReadMessage()
	assert.Error(t, err)
}
