// Package bridge exposes the shot simulator to an external policy trainer
// over websocket. Each trainer connection owns a private simulator.
package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/vladimirvolkov/basketball/shooter/internal/game"
	"github.com/vladimirvolkov/basketball/shooter/internal/monitor"
	"github.com/vladimirvolkov/basketball/shooter/internal/policy"
	"github.com/vladimirvolkov/basketball/shooter/internal/render"
	"github.com/vladimirvolkov/basketball/shooter/internal/ws"
)

const (
	EnvID = "BasketballShooter-v2"
	// ObservationHigh is the advertised upper bound of both observation
	// components.
	ObservationHigh = 1500
)

type Options struct {
	Scene      game.Scene
	Seed       uint64
	Store      *policy.Store
	Monitor    *monitor.Monitor
	Renderer   render.Renderer
	PolicyName string
	Timesteps  int
}

// Manager creates sessions for the hub and tracks when training is over.
type Manager struct {
	ctx        context.Context
	hub        *ws.Hub
	scene      game.Scene
	seed       uint64
	store      *policy.Store
	monitor    *monitor.Monitor
	renderer   render.Renderer
	policyName string
	timesteps  int
	log        *zap.Logger

	doneOnce     sync.Once
	trainingDone chan struct{}
}

func NewManager(ctx context.Context, opts Options, log *zap.Logger) *Manager {
	return &Manager{
		ctx:          ctx,
		scene:        opts.Scene,
		seed:         opts.Seed,
		store:        opts.Store,
		monitor:      opts.Monitor,
		renderer:     opts.Renderer,
		policyName:   opts.PolicyName,
		timesteps:    opts.Timesteps,
		log:          log,
		trainingDone: make(chan struct{}),
	}
}

// SetRenderer attaches a renderer that every session plays its shots
// through. Call before the hub starts accepting trainers.
func (m *Manager) SetRenderer(r render.Renderer) {
	m.renderer = r
}

// SetHub wires the hub after construction; the hub needs the manager too.
func (m *Manager) SetHub(h *ws.Hub) {
	m.hub = h
}

func (m *Manager) CreateSession(c *ws.Conn) {
	seed := xxhash.Sum64String(c.ID) ^ m.seed
	sim, err := game.NewSimulator(m.scene, game.WithSeed(seed))
	if err != nil {
		m.log.Error("create simulator", zap.String("conn", c.ID), zap.Error(err))
		if msg, encErr := ws.NewMessage(ws.MsgError, 0, ws.ErrorPayload{Code: ws.CodeUnavailable, Message: err.Error()}); encErr == nil {
			c.Send(msg)
			c.Flush(time.Second)
		}
		c.CloseWith(websocket.StatusInternalError, "simulator unavailable")
		m.hub.SessionEnded()
		return
	}

	sess := newSession(c, sim, m)
	sess.Start(m.ctx)
	go func() {
		<-sess.Done()
		m.hub.SessionEnded()
	}()
}

// TrainingDone closes once a trainer reports that it has finished.
func (m *Manager) TrainingDone() <-chan struct{} {
	return m.trainingDone
}

func (m *Manager) finishTraining() {
	m.doneOnce.Do(func() { close(m.trainingDone) })
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, game.ErrInvalidAction), errors.Is(err, policy.ErrInvalidName):
		return ws.CodeInvalidArgument
	case errors.Is(err, game.ErrShotComplete), errors.Is(err, game.ErrShotInFlight):
		return ws.CodeResetRequired
	default:
		return ws.CodeStorage
	}
}
