package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vladimirvolkov/basketball/shooter/internal/middleware"
)

func TestHub_SpectatorsReceiveWelcomeAndBroadcasts(t *testing.T) {
	limiter := middleware.NewIPRateLimiter(1, 100, time.Second)
	defer limiter.Close()
	hub := NewHub(nil, limiter, HubOptions{}, zap.NewNop())

	welcome, err := NewMessage(MsgScene, 0, map[string]int{"width": 1000})
	require.NoError(t, err)
	hub.SetWelcome(welcome)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/watch", hub.HandleWatch)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/watch"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	msg, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, MsgScene, msg.Type)
	require.JSONEq(t, `{"width":1000}`, string(msg.Payload))

	require.Eventually(t, func() bool { return hub.Spectators() == 1 }, 2*time.Second, 10*time.Millisecond)

	// one connection per IP: a second spectator from the same address is refused
	_, _, err = websocket.Dial(ctx, url, nil)
	require.Error(t, err)

	frame, err := NewMessage(MsgFrame, 3, map[string]int{"tick": 12})
	require.NoError(t, err)
	require.Equal(t, 1, hub.Broadcast(frame))

	_, data, err = c.Read(ctx)
	require.NoError(t, err)
	msg, err = Decode(data)
	require.NoError(t, err)
	require.Equal(t, MsgFrame, msg.Type)
	require.Equal(t, uint32(3), msg.Seq)

	stats := hub.Stats()
	require.Equal(t, 1, stats.Spectators)
	require.Equal(t, uint64(1), stats.TotalConnections)

	c.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return hub.Spectators() == 0 }, 2*time.Second, 10*time.Millisecond)
}

type heldSessions struct {
	mu    sync.Mutex
	conns []*Conn
}

func (h *heldSessions) CreateSession(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns = append(h.conns, c)
}

func TestHub_MaxSessionsUnderConcurrentConnects(t *testing.T) {
	held := &heldSessions{}
	hub := NewHub(held, nil, HubOptions{MaxSessions: 2}, zap.NewNop())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/env", hub.HandleEnv)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/env"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const dialers = 12
	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		clients  = make(chan *websocket.Conn, dialers)
	)
	for i := 0; i < dialers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, _, err := websocket.Dial(ctx, url, nil)
			if err != nil {
				return
			}
			accepted.Add(1)
			clients <- c
		}()
	}
	wg.Wait()
	close(clients)
	defer func() {
		for c := range clients {
			c.Close(websocket.StatusNormalClosure, "")
		}
	}()

	require.Equal(t, int32(2), accepted.Load())
	require.Equal(t, int64(2), hub.Stats().ActiveSessions)
	require.Eventually(t, func() bool {
		held.mu.Lock()
		defer held.mu.Unlock()
		return len(held.conns) == 2
	}, 2*time.Second, 10*time.Millisecond)
}
