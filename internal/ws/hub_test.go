package ws

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
)

func TestNewMessageEvent(t *testing.T) {
	ev := NewMessageEvent("Maria", "oi", "conv-1")
	assert.Equal(t, "Nova mensagem de Maria", ev.Title)
	assert.Equal(t, "oi", ev.Body)
	assert.Equal(t, "conv-1", ev.ConversationID)

	long := strings.Repeat("á", 150)
	ev = NewMessageEvent("Maria", long, "conv-1")
	assert.Equal(t, strings.Repeat("á", 100)+"...", ev.Body)

	exact := strings.Repeat("x", 100)
	assert.Equal(t, exact, NewMessageEvent("M", exact, "c").Body)
}

func TestBroadcastDropsWhenSaturated(t *testing.T) {
	h := NewHub()
	for i := 0; i < cap(h.broadcast); i++ {
		require.NoError(t, h.NotifyNewMessage("M", "x", "c"))
	}
	assert.ErrorIs(t, h.NotifyNewMessage("M", "x", "c"), ErrSaturated)
}

func TestNotifyReachesConnectedClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	go h.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWs))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, h.NotifyNewMessage("Maria", "oi", "conv-1"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev struct {
		Type string                 `json:"type"`
		Data NewMessageNotification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, "new_message", ev.Type)
	assert.Equal(t, "Nova mensagem de Maria", ev.Data.Title)
	assert.Equal(t, "conv-1", ev.Data.ConversationID)
}

func stoppedHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	return h
}

func TestJoinAndLeaveAfterStop(t *testing.T) {
	h := stoppedHub(t)
	c := &Client{hub: h, send: make(chan []byte, 1)}

	returned := make(chan bool, 1)
	go func() {
		joined := h.join(c)
		h.leave(c)
		returned <- joined
	}()

	select {
	case joined := <-returned:
		assert.False(t, joined)
	case <-time.After(2 * time.Second):
		t.Fatal("join/leave blocked on a stopped hub")
	}
}

func TestServeWsAfterStopClosesConnection(t *testing.T) {
	h := stoppedHub(t)

	served := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWs(w, r)
		served <- struct{}{}
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("ServeWs blocked on a stopped hub")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, h.ClientCount())
}
