package game

import (
	"fmt"
	"math"
)

// Scene constants
const (
	CanvasWidth  = 1000.0
	CanvasHeight = 700.0
	Gravity      = 0.3

	BallRadius = 8.0

	HoopX      = 800.0
	HoopY      = 150.0
	HoopRadius = 20.0

	StartMinX   = 100
	StartMaxX   = 600
	StartOffset = 100.0 // start line sits this far above the bottom edge

	MaxTicks = 400

	// HardTickLimit bounds every flight no matter how the scene is configured.
	HardTickLimit = 10000

	MinAngleDeg = 20.0
	MaxAngleDeg = 80.0
	MinPower    = 10.0
	MaxPower    = 28.0

	ScoreReward        = 100.0
	DistanceWeight     = -0.1
	OutOfBoundsPenalty = -5.0
)

// Scene holds the geometry a simulator is built with. It is not modified after
// NewSimulator.
type Scene struct {
	Width      float64 `json:"width" yaml:"width" toml:"width"`
	Height     float64 `json:"height" yaml:"height" toml:"height"`
	Gravity    float64 `json:"gravity" yaml:"gravity" toml:"gravity"`
	BallRadius float64 `json:"ballRadius" yaml:"ball_radius" toml:"ball_radius"`
	Hoop       Hoop    `json:"hoop" yaml:"hoop" toml:"hoop"`
	StartMinX  int     `json:"startMinX" yaml:"start_min_x" toml:"start_min_x"`
	StartMaxX  int     `json:"startMaxX" yaml:"start_max_x" toml:"start_max_x"`
	StartY     float64 `json:"startY" yaml:"start_y" toml:"start_y"`
	MaxTicks   int     `json:"maxTicks" yaml:"max_ticks" toml:"max_ticks"`
	MinAngle   float64 `json:"minAngle" yaml:"min_angle" toml:"min_angle"`
	MaxAngle   float64 `json:"maxAngle" yaml:"max_angle" toml:"max_angle"`
	MinPower   float64 `json:"minPower" yaml:"min_power" toml:"min_power"`
	MaxPower   float64 `json:"maxPower" yaml:"max_power" toml:"max_power"`
}

// DefaultScene returns the standard court.
func DefaultScene() Scene {
	return Scene{
		Width:      CanvasWidth,
		Height:     CanvasHeight,
		Gravity:    Gravity,
		BallRadius: BallRadius,
		Hoop:       Hoop{X: HoopX, Y: HoopY, Radius: HoopRadius},
		StartMinX:  StartMinX,
		StartMaxX:  StartMaxX,
		StartY:     CanvasHeight - StartOffset,
		MaxTicks:   MaxTicks,
		MinAngle:   MinAngleDeg,
		MaxAngle:   MaxAngleDeg,
		MinPower:   MinPower,
		MaxPower:   MaxPower,
	}
}

// Validate reports geometry that would make the simulation meaningless.
func (s Scene) Validate() error {
	if !finite(s.Width, s.Height, s.Gravity, s.BallRadius, s.Hoop.X, s.Hoop.Y, s.Hoop.Radius,
		s.StartY, s.MinAngle, s.MaxAngle, s.MinPower, s.MaxPower) {
		return fmt.Errorf("%w: non-finite geometry", ErrInvalidScene)
	}
	switch {
	case !(s.Width > 0) || !(s.Height > 0):
		return fmt.Errorf("%w: canvas %vx%v", ErrInvalidScene, s.Width, s.Height)
	case !(s.BallRadius > 0) || !(s.Hoop.Radius > 0):
		return fmt.Errorf("%w: radii must be positive", ErrInvalidScene)
	case s.StartMinX > s.StartMaxX:
		return fmt.Errorf("%w: start range [%d,%d]", ErrInvalidScene, s.StartMinX, s.StartMaxX)
	case s.MaxTicks < 1 || s.MaxTicks > HardTickLimit:
		return fmt.Errorf("%w: max ticks %d outside [1,%d]", ErrInvalidScene, s.MaxTicks, HardTickLimit)
	case s.MinAngle > s.MaxAngle || s.MinPower > s.MaxPower:
		return fmt.Errorf("%w: empty angle or power range", ErrInvalidScene)
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Phase tracks where a shot is in its lifecycle.
type Phase uint8

const (
	PhaseAwaitingShot Phase = iota
	PhaseInFlight
	PhaseScored
	PhaseOutOfBounds
	PhaseTimedOut
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingShot:
		return "awaiting_shot"
	case PhaseInFlight:
		return "in_flight"
	case PhaseScored:
		return "scored"
	case PhaseOutOfBounds:
		return "out_of_bounds"
	case PhaseTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Terminal reports whether the shot is over.
func (p Phase) Terminal() bool {
	return p >= PhaseScored
}

// Shot is the mutable per-episode ball record.
type Shot struct {
	StartX      float64 `json:"startX"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	VX          float64 `json:"vx"`
	VY          float64 `json:"vy"`
	MinDistance float64 `json:"minDistance"`
	Ticks       int     `json:"ticks"`
	Scored      bool    `json:"scored"`
	Complete    bool    `json:"complete"`
	Phase       Phase   `json:"phase"`
}

// Action is the normalized (angle, power) pair, each nominally in [-1, 1].
type Action [2]float64

// Observation is (ball x, distance from ball to hoop centre).
type Observation [2]float64

// Tick is a snapshot taken after one physics update.
type Tick struct {
	Index       int     `json:"tick"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	VX          float64 `json:"vx"`
	VY          float64 `json:"vy"`
	Distance    float64 `json:"distance"`
	MinDistance float64 `json:"minDistance"`
	Phase       Phase   `json:"phase"`
	Scored      bool    `json:"scored"`
	Score       int     `json:"score"`
}

// Point returns the integer trajectory sample for this tick.
func (t Tick) Point() [2]int {
	return [2]int{int(t.X), int(t.Y)}
}

// StepResult is what a completed episode reports back to the caller.
type StepResult struct {
	Observation Observation    `json:"observation"`
	Reward      float64        `json:"reward"`
	Terminated  bool           `json:"terminated"`
	Truncated   bool           `json:"truncated"`
	Info        map[string]any `json:"info"`
}
