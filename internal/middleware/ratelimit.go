package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

type client struct {
	connections int
	tokens      int
	lastRefill  time.Time
}

// IPRateLimiter tracks per-IP connection counts and message rates for
// trainer and spectator connections.
type IPRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	now     func() time.Time

	maxConnsPerIP int
	msgRate       int
	msgWindow     time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter creates a rate limiter.
//   - maxConnsPerIP: max simultaneous connections per IP, 0 for no limit
//   - msgRate: messages allowed per msgWindow
//   - msgWindow: refill period of the message bucket
func NewIPRateLimiter(maxConnsPerIP, msgRate int, msgWindow time.Duration) *IPRateLimiter {
	rl := &IPRateLimiter{
		clients:       make(map[string]*client),
		now:           time.Now,
		maxConnsPerIP: maxConnsPerIP,
		msgRate:       msgRate,
		msgWindow:     msgWindow,
		stop:          make(chan struct{}),
	}
	go rl.cleanup(5 * time.Minute)
	return rl
}

func (rl *IPRateLimiter) get(ip string) *client {
	c, ok := rl.clients[ip]
	if !ok {
		c = &client{tokens: rl.msgRate, lastRefill: rl.now()}
		rl.clients[ip] = c
	}
	return c
}

// ConnectAllowed reserves a connection slot for ip if one is free.
func (rl *IPRateLimiter) ConnectAllowed(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c := rl.get(ip)
	if rl.maxConnsPerIP > 0 && c.connections >= rl.maxConnsPerIP {
		return false
	}
	c.connections++
	return true
}

// Disconnect releases a slot taken by ConnectAllowed.
func (rl *IPRateLimiter) Disconnect(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if c, ok := rl.clients[ip]; ok && c.connections > 0 {
		c.connections--
	}
}

// MessageAllowed takes one token from the ip's bucket. The bucket refills
// msgRate tokens per elapsed msgWindow, capped at msgRate.
func (rl *IPRateLimiter) MessageAllowed(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c := rl.get(ip)
	if elapsed := rl.now().Sub(c.lastRefill); elapsed >= rl.msgWindow {
		windows := int(elapsed / rl.msgWindow)
		c.tokens = min(c.tokens+windows*rl.msgRate, rl.msgRate)
		c.lastRefill = c.lastRefill.Add(time.Duration(windows) * rl.msgWindow)
	}
	if c.tokens <= 0 {
		return false
	}
	c.tokens--
	return true
}

// Connections returns the open connection count for ip.
func (rl *IPRateLimiter) Connections(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if c, ok := rl.clients[ip]; ok {
		return c.connections
	}
	return 0
}

// Close stops the background cleanup.
func (rl *IPRateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// cleanup drops entries with no open connections.
func (rl *IPRateLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for ip, c := range rl.clients {
				if c.connections <= 0 {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

// RealIP extracts the client IP from the request, preferring the first
// X-Forwarded-For entry set by a reverse proxy.
func RealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
