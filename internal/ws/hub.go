package ws

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vladimirvolkov/basketball/shooter/internal/middleware"
)

// SessionCreator takes ownership of a freshly accepted trainer connection.
type SessionCreator interface {
	CreateSession(c *Conn)
}

// HubStats holds live server metrics.
type HubStats struct {
	ActiveSessions   int64  `json:"activeSessions"`
	TotalConnections uint64 `json:"totalConnections"`
	Spectators       int    `json:"spectators"`
}

type HubOptions struct {
	OriginPatterns []string
	MaxSessions    int
	ReadLimit      int64
}

// Hub accepts trainer connections on one endpoint and spectators on another.
// Trainers each get a session from the creator; spectators receive every
// broadcast frame.
type Hub struct {
	mu         sync.Mutex
	spectators map[*Conn]struct{}
	welcome    []Message
	creator    SessionCreator

	activeSessions   atomic.Int64
	totalConnections atomic.Uint64

	limiter *middleware.IPRateLimiter
	opts    HubOptions
	log     *zap.Logger
}

func NewHub(creator SessionCreator, limiter *middleware.IPRateLimiter, opts HubOptions, log *zap.Logger) *Hub {
	return &Hub{
		spectators: make(map[*Conn]struct{}),
		creator:    creator,
		limiter:    limiter,
		opts:       opts,
		log:        log,
	}
}

// Stats returns a snapshot of current server metrics.
func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	n := len(h.spectators)
	h.mu.Unlock()
	return HubStats{
		ActiveSessions:   h.activeSessions.Load(),
		TotalConnections: h.totalConnections.Load(),
		Spectators:       n,
	}
}

// SessionEnded decrements the active session counter. Call when a session
// goroutine exits.
func (h *Hub) SessionEnded() {
	h.activeSessions.Add(-1)
}

// SetWelcome sets the messages every new spectator receives first.
func (h *Hub) SetWelcome(msgs ...Message) {
	h.mu.Lock()
	h.welcome = msgs
	h.mu.Unlock()
}

func (h *Hub) accept(w http.ResponseWriter, r *http.Request) (*Conn, bool) {
	ip := middleware.RealIP(r)
	if h.limiter != nil && !h.limiter.ConnectAllowed(ip) {
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return nil, false
	}

	acceptOpts := &websocket.AcceptOptions{}
	if len(h.opts.OriginPatterns) > 0 {
		acceptOpts.OriginPatterns = h.opts.OriginPatterns
	}
	wsConn, err := websocket.Accept(w, r, acceptOpts)
	if err != nil {
		if h.limiter != nil {
			h.limiter.Disconnect(ip)
		}
		h.log.Warn("ws accept error", zap.Error(err))
		return nil, false
	}
	if h.opts.ReadLimit > 0 {
		wsConn.SetReadLimit(h.opts.ReadLimit)
	}

	h.totalConnections.Add(1)
	conn := NewConn(wsConn, uuid.NewString(), ip, h.limiter, h.log)

	// Use background context so the connection outlives the HTTP handler
	go conn.WriteLoop(context.Background())
	go func() {
		<-conn.Done()
		if h.limiter != nil {
			h.limiter.Disconnect(ip)
		}
	}()
	return conn, true
}

// HandleEnv upgrades a trainer connection and hands it to the session creator.
func (h *Hub) HandleEnv(w http.ResponseWriter, r *http.Request) {
	if !h.reserveSession() {
		h.log.Warn("max sessions reached, rejecting trainer", zap.String("ip", middleware.RealIP(r)))
		http.Error(w, "server full", http.StatusServiceUnavailable)
		return
	}
	conn, ok := h.accept(w, r)
	if !ok {
		h.activeSessions.Add(-1)
		return
	}
	h.log.Info("trainer connected",
		zap.String("conn", conn.ID),
		zap.String("ip", conn.IP),
		zap.Int64("sessions", h.activeSessions.Load()),
	)
	h.creator.CreateSession(conn)
}

// reserveSession takes a session slot, or reports false when all are in use.
func (h *Hub) reserveSession() bool {
	if h.opts.MaxSessions <= 0 {
		h.activeSessions.Add(1)
		return true
	}
	for {
		n := h.activeSessions.Load()
		if n >= int64(h.opts.MaxSessions) {
			return false
		}
		if h.activeSessions.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// HandleWatch upgrades a spectator connection and keeps it registered until
// it closes.
func (h *Hub) HandleWatch(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.accept(w, r)
	if !ok {
		return
	}

	h.mu.Lock()
	h.spectators[conn] = struct{}{}
	welcome := h.welcome
	h.mu.Unlock()
	h.log.Info("spectator joined", zap.String("conn", conn.ID))

	for _, msg := range welcome {
		conn.Send(msg)
	}

	// spectators only talk to close the connection
	for range conn.ReadLoop(r.Context()) {
	}

	h.mu.Lock()
	delete(h.spectators, conn)
	h.mu.Unlock()
	conn.Close()
	h.log.Info("spectator left", zap.String("conn", conn.ID))
}

// Broadcast queues msg for every spectator and returns how many accepted it.
func (h *Hub) Broadcast(msg Message) int {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.spectators))
	for c := range h.spectators {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	sent := 0
	for _, c := range conns {
		if c.Send(msg) {
			sent++
		}
	}
	return sent
}

// Spectators returns the number of connected spectators.
func (h *Hub) Spectators() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.spectators)
}
