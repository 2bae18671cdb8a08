// Package render draws shots. Renderers consume the tick sequence of a
// flight and never touch the simulator, so rendering cannot change an
// outcome.
package render

import (
	"context"
	"errors"
	"time"

	"github.com/vladimirvolkov/basketball/shooter/internal/game"
)

// FPS is the default pacing rate.
const FPS = 60

// Frame is everything needed to draw one tick of a shot.
type Frame struct {
	Shot       int        `json:"shot"`
	Tick       int        `json:"tick"`
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	Trajectory [][2]int   `json:"trajectory"`
	Scored     bool       `json:"scored"`
	Score      int        `json:"score"`
	Phase      string     `json:"phase"`
	Final      bool       `json:"final"`
	Scene      game.Scene `json:"-"`
}

type Renderer interface {
	Render(f Frame) error
	Close() error
}

// Pacer holds rendering to a fixed frame rate.
type Pacer struct {
	ticker *time.Ticker
}

func NewPacer(fps int) *Pacer {
	if fps < 1 {
		fps = FPS
	}
	return &Pacer{ticker: time.NewTicker(time.Second / time.Duration(fps))}
}

// Wait blocks until the next frame slot.
func (p *Pacer) Wait(ctx context.Context) error {
	select {
	case <-p.ticker.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pacer) Stop() {
	p.ticker.Stop()
}

// Play consumes the flight, rendering one frame per tick, and returns the
// episode result. If rendering fails or ctx ends, the remaining ticks are
// simulated without drawing and the error is returned next to the result.
func Play(ctx context.Context, shot int, f *game.Flight, scene game.Scene, r Renderer, p *Pacer) (game.StepResult, error) {
	x, y := f.Start()
	trajectory := [][2]int{{int(x), int(y)}}

	var err error
	for tick := range f.Ticks() {
		trajectory = append(trajectory, tick.Point())
		frame := Frame{
			Shot:       shot,
			Tick:       tick.Index,
			X:          tick.X,
			Y:          tick.Y,
			Trajectory: trajectory,
			Scored:     tick.Scored,
			Score:      tick.Score,
			Phase:      tick.Phase.String(),
			Final:      tick.Phase.Terminal(),
			Scene:      scene,
		}
		if err = r.Render(frame); err != nil {
			break
		}
		if p != nil {
			if err = p.Wait(ctx); err != nil {
				break
			}
		}
	}
	return f.Result(), err
}

type multi []Renderer

// Multi fans every frame out to several renderers.
func Multi(rs ...Renderer) Renderer {
	return multi(rs)
}

func (m multi) Render(f Frame) error {
	var errs []error
	for _, r := range m {
		if err := r.Render(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
