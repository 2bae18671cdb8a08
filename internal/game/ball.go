package game

import (
	"fmt"
	"math"
)

func clamp(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// lerp maps a in [-1, 1] linearly onto [lo, hi].
func lerp(a, lo, hi float64) float64 {
	return lo + (a+1)/2*(hi-lo)
}

// ActionFromSlice builds an Action from a wire or policy vector.
func ActionFromSlice(v []float64) (Action, error) {
	if len(v) != len(Action{}) {
		return Action{}, fmt.Errorf("%w: want %d components, got %d", ErrInvalidAction, len(Action{}), len(v))
	}
	a := Action{v[0], v[1]}
	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}

// Validate rejects NaN and infinite components. Finite values outside
// [-1, 1] are accepted and clamped at launch.
func (a Action) Validate() error {
	for i, v := range a {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: component %d is %v", ErrInvalidAction, i, v)
		}
	}
	return nil
}

// Clamped returns the action with both components limited to [-1, 1].
func (a Action) Clamped() Action {
	return Action{clamp(a[0], -1, 1), clamp(a[1], -1, 1)}
}

// Launch maps a normalized action to a launch angle in degrees and a power
// in units per tick.
func (s Scene) Launch(a Action) (angleDeg, power float64) {
	a = a.Clamped()
	return lerp(a[0], s.MinAngle, s.MaxAngle), lerp(a[1], s.MinPower, s.MaxPower)
}

// ActionFor is the inverse of Launch.
func (s Scene) ActionFor(angleDeg, power float64) Action {
	norm := func(v, lo, hi float64) float64 {
		if hi == lo {
			return 0
		}
		return clamp((v-lo)/(hi-lo)*2-1, -1, 1)
	}
	return Action{norm(angleDeg, s.MinAngle, s.MaxAngle), norm(power, s.MinPower, s.MaxPower)}
}

// LaunchVelocity splits a launch into components. The y axis points down, so
// an upward shot has negative vy.
func LaunchVelocity(angleDeg, power float64) (vx, vy float64) {
	rad := angleDeg * math.Pi / 180
	return power * math.Cos(rad), -power * math.Sin(rad)
}

// StepBall advances the ball by one tick. Velocity is updated before
// position.
func StepBall(b *Shot, gravity float64) {
	b.VY += gravity
	b.X += b.VX
	b.Y += b.VY
	b.Ticks++
}

// AimShot solves for the power that sends a ball launched from (startX,
// scene.StartY) at angleDeg through the hoop centre on its way down.
//
// StepBall gives x(n) = x0 + n*vx and y(n) = y0 + n*vy0 + g*n*(n+1)/2, so with
// D the horizontal gap and H the height of the hoop above the start line:
//
//	n*(n+1) = 2*(D*tan(angle) - H) / g
//	power   = D / (n*cos(angle))
//
// ok is false when no descending solution exists.
func AimShot(s Scene, startX, angleDeg float64) (power float64, ok bool) {
	D := s.Hoop.X - startX
	H := s.StartY - s.Hoop.Y
	if D <= 0 || s.Gravity <= 0 || angleDeg <= 0 || angleDeg >= 90 {
		return 0, false
	}
	rad := angleDeg * math.Pi / 180
	k := 2 * (D*math.Tan(rad) - H) / s.Gravity
	if k <= 0 {
		return 0, false
	}
	n := (math.Sqrt(1+4*k) - 1) / 2
	power = D / (n * math.Cos(rad))

	// vy at arrival must be positive for the hoop check to fire
	if s.Gravity*n-power*math.Sin(rad) <= 0 {
		return 0, false
	}
	return power, true
}
