package render

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/vladimirvolkov/basketball/shooter/internal/game"
	"github.com/vladimirvolkov/basketball/shooter/internal/ws"
)

//go:embed static
var static embed.FS

// Broadcaster sends frames to every spectator connected to the hub.
type Broadcaster struct {
	hub *ws.Hub
}

// NewBroadcaster registers the scene as the hub's spectator greeting so the
// viewer can size its canvas before the first frame.
func NewBroadcaster(hub *ws.Hub, scene game.Scene) (*Broadcaster, error) {
	msg, err := ws.NewMessage(ws.MsgScene, 0, scene)
	if err != nil {
		return nil, err
	}
	hub.SetWelcome(msg)
	return &Broadcaster{hub: hub}, nil
}

func (b *Broadcaster) Render(f Frame) error {
	msg, err := ws.NewMessage(ws.MsgFrame, uint32(f.Shot), f)
	if err != nil {
		return err
	}
	b.hub.Broadcast(msg)
	return nil
}

func (b *Broadcaster) Close() error { return nil }

// ViewerHandler serves the canvas page that draws broadcast frames.
func ViewerHandler() http.Handler {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
