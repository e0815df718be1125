package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconnectDelayDoublesPerAttempt(t *testing.T) {
	s := NewStream("ws://localhost:0", nil)

	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 32 * time.Second, 64 * time.Second, 128 * time.Second,
		256 * time.Second, 512 * time.Second,
	}
	require.Len(t, want, wsMaxReconnectTries)
	for i, d := range want {
		assert.Equal(t, d, s.reconnectDelay(i+1), "attempt %d", i+1)
	}
}

func TestReconnectExhaustedEmitsTerminalError(t *testing.T) {
	// Puerto 1: el dial falla rápido en cada intento.
	s := NewStream("ws://127.0.0.1:1", nil)
	s.reconnectBase = time.Millisecond
	s.maxReconnect = 4

	s.reconnect(context.Background())

	select {
	case err := <-s.Errors():
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reconnect exhausted after 4 attempts")
	default:
		t.Fatal("expected terminal error on Errors() after exhaustion")
	}
	assert.Equal(t, StateDisconnected, s.State())
}

func TestReconnectStopsOnContextCancel(t *testing.T) {
	s := NewStream("ws://127.0.0.1:1", nil)
	s.reconnectBase = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.reconnect(ctx)

	select {
	case err := <-s.Errors():
		t.Fatalf("cancelled reconnect must not be terminal, got %v", err)
	default:
	}
	assert.Equal(t, StateDisconnected, s.State())
}

// Subscribe desde varias goroutines sobre la misma conexión: gorilla
// revienta con "concurrent write to websocket connection" si los
// WriteJSON no van serializados.
func TestSubscribeConcurrentWritesSerialized(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := NewStream("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, s.Connect(context.Background()))
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				assert.NoError(t, s.Subscribe([]string{"tok-up", "tok-down"}))
			}
		}()
	}
	wg.Wait()
}
