package game

import (
	"math"
	"math/rand/v2"
)

// seedStream is the second PCG word used for every seeded simulator.
const seedStream = 0x9e3779b97f4a7c15

// Simulator owns one shot at a time: it launches it, integrates it to a
// terminal state and scores it. It is not safe for concurrent use.
type Simulator struct {
	scene Scene
	rng   *rand.Rand
	shot  Shot
	score int

	active *Flight
}

type Option func(*Simulator)

// WithSeed makes start positions reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Simulator) {
		s.Seed(seed)
	}
}

// NewSimulator validates the scene and returns a simulator with a fresh shot
// awaiting launch and a zero score.
func NewSimulator(scene Scene, opts ...Option) (*Simulator, error) {
	if err := scene.Validate(); err != nil {
		return nil, err
	}
	s := &Simulator{scene: scene}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s.Reset()
	return s, nil
}

// Seed reseeds the start position generator.
func (s *Simulator) Seed(seed uint64) {
	s.rng = rand.New(rand.NewPCG(seed, seedStream))
}

// Reset starts a new episode at a random start x and returns its first
// observation. The cumulative score is kept.
func (s *Simulator) Reset() Observation {
	span := s.scene.StartMaxX - s.scene.StartMinX + 1
	x := s.scene.StartMinX + s.rng.IntN(span)
	return s.ResetFrom(float64(x))
}

// ResetFrom starts a new episode at a fixed start x. A flight that has not
// been played out is finished first so the previous shot always reaches a
// terminal state.
func (s *Simulator) ResetFrom(x float64) Observation {
	if s.active != nil {
		s.active.Result()
		s.active = nil
	}
	s.shot = Shot{
		StartX:      x,
		X:           x,
		Y:           s.scene.StartY,
		MinDistance: math.Inf(1),
		Phase:       PhaseAwaitingShot,
	}
	return s.Observation()
}

// Observation is recomputed from the current shot.
func (s *Simulator) Observation() Observation {
	return Observation{s.shot.X, s.scene.Hoop.Distance(s.shot.X, s.shot.Y)}
}

// Score returns the number of shots scored since construction.
func (s *Simulator) Score() int { return s.score }

func (s *Simulator) Scene() Scene { return s.scene }

// Shot returns a copy of the current shot.
func (s *Simulator) Shot() Shot { return s.shot }

// Launch fires the current shot and returns its flight. Nothing is simulated
// until the flight is consumed.
func (s *Simulator) Launch(a Action) (*Flight, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	switch s.shot.Phase {
	case PhaseAwaitingShot:
	case PhaseInFlight:
		return nil, ErrShotInFlight
	default:
		return nil, ErrShotComplete
	}

	angle, power := s.scene.Launch(a)
	s.shot.VX, s.shot.VY = LaunchVelocity(angle, power)
	s.shot.Phase = PhaseInFlight
	s.active = &Flight{
		sim:    s,
		action: a.Clamped(),
		angle:  angle,
		power:  power,
		startX: s.shot.StartX,
		startY: s.shot.Y,
	}
	return s.active, nil
}

// Step plays a whole episode for the action. The result is always terminal.
func (s *Simulator) Step(a Action) (StepResult, error) {
	f, err := s.Launch(a)
	if err != nil {
		return StepResult{}, err
	}
	return f.Result(), nil
}

// advance runs one physics tick and applies the scoring and termination rules.
func (s *Simulator) advance() Tick {
	b := &s.shot
	StepBall(b, s.scene.Gravity)

	dist := s.scene.Hoop.Distance(b.X, b.Y)
	if dist < b.MinDistance {
		b.MinDistance = dist
	}

	if CheckBallHoop(b, s.scene.Hoop, s.scene.BallRadius, dist) {
		b.Scored = true
		b.Complete = true
		b.Phase = PhaseScored
		s.score++
	}

	switch {
	case s.scene.OutOfBounds(b.X, b.Y):
		b.Complete = true
		if !b.Scored {
			b.Phase = PhaseOutOfBounds
		}
	case b.Ticks > s.scene.MaxTicks || b.Ticks >= HardTickLimit:
		b.Complete = true
		if !b.Scored {
			b.Phase = PhaseTimedOut
		}
	}

	return Tick{
		Index:       b.Ticks,
		X:           b.X,
		Y:           b.Y,
		VX:          b.VX,
		VY:          b.VY,
		Distance:    dist,
		MinDistance: b.MinDistance,
		Phase:       b.Phase,
		Scored:      b.Scored,
		Score:       s.score,
	}
}
