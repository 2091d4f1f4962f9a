package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAuth map[string]uint

func (a staticAuth) ParseToken(token string) (uint, error) {
	id, ok := a[token]
	if !ok {
		return 0, errors.New("unknown token")
	}
	return id, nil
}

func startHub(t *testing.T) (*Hub, *httptest.Server, chan Message) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(staticAuth{"alice": 1}, []string{"http://localhost:3000"})
	received := make(chan Message, 1)
	hub.Handle("media.", MessageHandlerFunc(func(ctx context.Context, userID uint, msg Message) {
		if userID == 1 {
			received <- msg
		}
	}))
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(srv.Close)
	return hub, srv, received
}

func wsURL(srv *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + token
}

func TestHandleWebSocketRejectsBadToken(t *testing.T) {
	_, srv, _ := startHub(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "mallory"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSendToUserAndDispatch(t *testing.T) {
	hub, srv, received := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "alice"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connected(1) == 1 }, time.Second, 10*time.Millisecond)

	hub.SendToUser(1, "quiz.state", map[string]int{"score": 2})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "quiz.state", msg.Type)
	assert.JSONEq(t, `{"score":2}`, string(msg.Data))

	inbound, _ := json.Marshal(Message{Type: "media.timeupdate", Data: json.RawMessage(`{"currentTime":3}`)})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, inbound))

	select {
	case got := <-received:
		assert.Equal(t, "media.timeupdate", got.Type)
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Connected(1) == 0 }, time.Second, 10*time.Millisecond)
}

func TestOnDisconnectFiresAfterLastConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(staticAuth{"alice": 1}, nil)
	gone := make(chan uint, 2)
	hub.OnDisconnect(func(userID uint) { gone <- userID })
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	first, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "alice"), nil)
	require.NoError(t, err)
	second, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "alice"), nil)
	require.NoError(t, err)
	defer second.Close()
	require.Eventually(t, func() bool { return hub.Connected(1) == 2 }, time.Second, 10*time.Millisecond)

	first.Close()
	require.Eventually(t, func() bool { return hub.Connected(1) == 1 }, time.Second, 10*time.Millisecond)
	select {
	case id := <-gone:
		t.Fatalf("disconnect fired for user %d with a connection still open", id)
	case <-time.After(50 * time.Millisecond):
	}

	second.Close()
	select {
	case id := <-gone:
		assert.Equal(t, uint(1), id)
	case <-time.After(time.Second):
		t.Fatal("disconnect callback not called")
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000"})

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(r), "no origin header")

	r.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, check(r))

	r.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(r))
}
