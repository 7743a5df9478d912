package broadcast

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

func TestHubFansOutToConnectedClient(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	// Registration races the first signal, so keep signalling until the
	// client sees one.
	signalCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() {
		for {
			select {
			case <-signalCtx.Done():
				return
			default:
				hub.StateChanged()
				time.Sleep(10 * time.Millisecond)
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev struct {
		Event string `json:"event"`
	}
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, EventAssetsUpdated, ev.Event)
}

func TestStateChangedNeverBlocks(t *testing.T) {
	hub := NewHub(nil)
	// No Run loop draining the queue: every call past the buffer must drop
	// instead of blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.StateChanged()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("StateChanged blocked on a full queue")
	}
}

func TestCheckOriginRejectsUpgrade(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return false })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil) //nolint:bodyclose
	if conn != nil {
		_ = conn.Close()
	}
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
	require.Error(t, err)
}
