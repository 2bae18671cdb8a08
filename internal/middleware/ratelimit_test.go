package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIPRateLimiter_Connections(t *testing.T) {
	rl := NewIPRateLimiter(2, 10, time.Second)
	defer rl.Close()

	require.True(t, rl.ConnectAllowed("10.0.0.1"))
	require.True(t, rl.ConnectAllowed("10.0.0.1"))
	require.False(t, rl.ConnectAllowed("10.0.0.1"))
	require.True(t, rl.ConnectAllowed("10.0.0.2"))

	rl.Disconnect("10.0.0.1")
	require.Equal(t, 1, rl.Connections("10.0.0.1"))
	require.True(t, rl.ConnectAllowed("10.0.0.1"))

	rl.Disconnect("unknown")
	require.Zero(t, rl.Connections("unknown"))
}

func TestIPRateLimiter_MessageBucket(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewIPRateLimiter(0, 3, time.Second)
	defer rl.Close()
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		require.True(t, rl.MessageAllowed("ip"))
	}
	require.False(t, rl.MessageAllowed("ip"))

	now = now.Add(500 * time.Millisecond)
	require.False(t, rl.MessageAllowed("ip"), "no refill inside the window")

	now = now.Add(5 * time.Second)
	for i := 0; i < 3; i++ {
		require.True(t, rl.MessageAllowed("ip"))
	}
	require.False(t, rl.MessageAllowed("ip"), "refill is capped at the rate")
}

func TestRealIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/env", nil)
	r.RemoteAddr = "192.0.2.7:5555"
	require.Equal(t, "192.0.2.7", RealIP(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	require.Equal(t, "203.0.113.9", RealIP(r))
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(NoCache(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Contains(t, rec.Header().Get("Content-Security-Policy"), "connect-src 'self' ws: wss:")
	require.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
}
