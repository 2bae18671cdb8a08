package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vladimirvolkov/basketball/shooter/internal/game"
	"github.com/vladimirvolkov/basketball/shooter/internal/render"
	"github.com/vladimirvolkov/basketball/shooter/internal/ws"
)

// Session serves one trainer connection. The trainer drives its own
// simulator with reset and step messages; every step is a whole episode.
type Session struct {
	conn    *ws.Conn
	sim     *game.Simulator
	deps    *Manager
	log     *zap.Logger
	episode uint32
	pacer   *render.Pacer
	cancel  context.CancelFunc
	done    chan struct{}
}

func newSession(conn *ws.Conn, sim *game.Simulator, deps *Manager) *Session {
	return &Session{
		conn: conn,
		sim:  sim,
		deps: deps,
		log:  deps.log.With(zap.String("session", conn.ID)),
	}
}

func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	if s.deps.renderer != nil {
		s.pacer = render.NewPacer(render.FPS)
	}

	low, high := []float64{-1, -1}, []float64{1, 1}
	info, _ := ws.NewMessage(ws.MsgEnvInfo, 0, ws.EnvInfoPayload{
		SessionID:   s.conn.ID,
		EnvID:       EnvID,
		ActionSpace: ws.Space{Low: low, High: high, Shape: []int{2}},
		ObservationSpace: ws.Space{
			Low:   []float64{0, 0},
			High:  []float64{ObservationHigh, ObservationHigh},
			Shape: []int{2},
		},
		PolicyName: s.deps.policyName,
		Timesteps:  s.deps.timesteps,
	})
	s.conn.Send(info)

	go func() {
		s.readLoop(ctx)
		if s.pacer != nil {
			s.pacer.Stop()
		}
		close(s.done)
	}()
}

// Done returns a channel that closes when the session's read loop exits.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) readLoop(ctx context.Context) {
	msgs := s.conn.ReadLoop(ctx)
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				s.log.Info("trainer disconnected", zap.Uint32("episodes", s.episode), zap.Int("score", s.sim.Score()))
				s.cancel()
				return
			}
			s.handleMessage(ctx, msg)
		case <-ctx.Done():
			s.conn.Close()
			return
		}
	}
}

func (s *Session) handleMessage(ctx context.Context, msg ws.Message) {
	switch msg.Type {
	case ws.MsgReset:
		var p ws.ResetPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				s.sendError(ws.CodeInvalidArgument, err)
				return
			}
		}
		if p.Seed != nil {
			s.sim.Seed(*p.Seed)
		}
		obs := s.sim.Reset()
		s.send(ws.MsgObservation, ws.ObservationPayload{Observation: obs[:], Info: map[string]any{}})

	case ws.MsgStep:
		var p ws.StepPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.sendError(ws.CodeInvalidArgument, err)
			return
		}
		action, err := game.ActionFromSlice(p.Action)
		if err != nil {
			s.sendError(ws.CodeInvalidArgument, err)
			return
		}
		res, err := s.step(ctx, action)
		if err != nil {
			s.sendError(codeFor(err), err)
			return
		}
		s.send(ws.MsgStepResult, ws.StepResultPayload{
			Observation: res.Observation[:],
			Reward:      res.Reward,
			Terminated:  res.Terminated,
			Truncated:   res.Truncated,
			Info:        res.Info,
		})

	case ws.MsgSavePolicy:
		var p ws.SavePolicyPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.sendError(ws.CodeInvalidArgument, err)
			return
		}
		if p.Name == "" {
			p.Name = s.deps.policyName
		}
		if err := s.deps.store.Save(p.Name, p.Artifact); err != nil {
			s.sendError(codeFor(err), err)
			return
		}
		s.log.Info("policy saved", zap.String("name", p.Name), zap.Int("bytes", len(p.Artifact)))
		s.send(ws.MsgPolicySaved, ws.PolicySavedPayload{Name: p.Name, Bytes: len(p.Artifact)})

	case ws.MsgTrainingDone:
		s.log.Info("trainer reported training done", zap.Uint32("episodes", s.episode))
		s.deps.finishTraining()

	case ws.MsgPing:
		var ping ws.PingPayload
		if err := json.Unmarshal(msg.Payload, &ping); err != nil {
			return
		}
		s.send(ws.MsgPong, ws.PongPayload{
			ClientTime: ping.ClientTime,
			ServerTime: uint64(time.Now().UnixMilli()),
		})

	default:
		s.sendError(ws.CodeUnknownMessage, errors.New("unknown message type"))
	}
}

// step plays one episode, rendering it when a renderer is attached, and
// records it with the monitor.
func (s *Session) step(ctx context.Context, action game.Action) (game.StepResult, error) {
	startX := s.sim.Shot().StartX
	flight, err := s.sim.Launch(action)
	if err != nil {
		return game.StepResult{}, err
	}
	s.episode++

	var res game.StepResult
	if s.deps.renderer != nil {
		res, err = render.Play(ctx, int(s.episode), flight, s.sim.Scene(), s.deps.renderer, s.pacer)
		if err != nil {
			s.log.Warn("render failed", zap.Error(err))
		}
	} else {
		res = flight.Result()
	}

	shot := s.sim.Shot()
	if s.deps.monitor != nil {
		if err := s.deps.monitor.Record(ctx, s.conn.ID, res.Reward, shot.Ticks, shot.Scored, startX); err != nil {
			s.log.Warn("monitor record failed", zap.Error(err))
		}
	}
	s.log.Debug("episode",
		zap.Uint32("episode", s.episode),
		zap.Float64("startX", startX),
		zap.Float64s("action", action[:]),
		zap.Stringer("phase", shot.Phase),
		zap.Float64("reward", res.Reward),
	)
	return res, nil
}

func (s *Session) send(typ uint8, payload any) {
	msg, err := ws.NewMessage(typ, s.episode, payload)
	if err != nil {
		s.log.Error("encode reply", zap.Uint8("type", typ), zap.Error(err))
		return
	}
	s.conn.Send(msg)
}

func (s *Session) sendError(code string, err error) {
	s.log.Debug("request rejected", zap.String("code", code), zap.Error(err))
	s.send(ws.MsgError, ws.ErrorPayload{Code: code, Message: err.Error()})
}
