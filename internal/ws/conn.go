package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/vladimirvolkov/basketball/shooter/internal/middleware"
)

const (
	sendBuffer   = 256
	writeTimeout = 5 * time.Second
)

type Conn struct {
	ws      *websocket.Conn
	sendCh  chan []byte
	done    chan struct{}
	once    sync.Once
	pending atomic.Int64
	ID      string
	IP      string
	limiter *middleware.IPRateLimiter
	log     *zap.Logger
}

func NewConn(ws *websocket.Conn, id, ip string, limiter *middleware.IPRateLimiter, log *zap.Logger) *Conn {
	return &Conn{
		ws:      ws,
		sendCh:  make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		ID:      id,
		IP:      ip,
		limiter: limiter,
		log:     log.With(zap.String("conn", id), zap.String("ip", ip)),
	}
}

// Send queues a message. It never blocks; when the buffer is full the
// message is dropped and false is returned.
func (c *Conn) Send(msg Message) bool {
	data, err := Encode(msg)
	if err != nil {
		c.log.Error("encode message", zap.Uint8("type", msg.Type), zap.Error(err))
		return false
	}
	c.pending.Add(1)
	select {
	case c.sendCh <- data:
		return true
	case <-c.done:
		c.pending.Add(-1)
		return false
	default:
		c.pending.Add(-1)
		c.log.Warn("send buffer full, dropping message", zap.Uint8("type", msg.Type))
		return false
	}
}

// ReadLoop decodes incoming messages until the connection fails or ctx ends.
// The returned channel is closed when reading stops.
func (c *Conn) ReadLoop(ctx context.Context) <-chan Message {
	ch := make(chan Message, 64)
	go func() {
		defer close(ch)
		for {
			_, data, err := c.ws.Read(ctx)
			if err != nil {
				if websocket.CloseStatus(err) == websocket.StatusNormalClosure || ctx.Err() != nil {
					c.log.Debug("read loop closed", zap.Error(err))
				} else {
					c.log.Info("read error", zap.Error(err))
				}
				c.Close()
				return
			}
			if c.limiter != nil && !c.limiter.MessageAllowed(c.IP) {
				c.log.Debug("rate limited, dropping message")
				continue
			}
			msg, err := Decode(data)
			if err != nil {
				c.log.Warn("decode error", zap.Error(err))
				continue
			}
			select {
			case ch <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (c *Conn) WriteLoop(ctx context.Context) {
	for {
		select {
		case data := <-c.sendCh:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.ws.Write(wctx, websocket.MessageText, data)
			cancel()
			c.pending.Add(-1)
			if err != nil {
				c.log.Info("write error", zap.Error(err))
				c.Close()
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Flush waits until every queued message has been written, the connection
// closes or the timeout passes.
func (c *Conn) Flush(timeout time.Duration) {
	deadline := time.After(timeout)
	for c.pending.Load() > 0 {
		select {
		case <-deadline:
			return
		case <-c.done:
			return
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (c *Conn) Close() {
	c.CloseWith(websocket.StatusNormalClosure, "")
}

func (c *Conn) CloseWith(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close(code, reason)
	})
}

func (c *Conn) Done() <-chan struct{} {
	return c.done
}
