package game

import "math"

// Hoop is the scoring zone: a centre point and a detection radius.
type Hoop struct {
	X      float64 `json:"x" yaml:"x" toml:"x"`
	Y      float64 `json:"y" yaml:"y" toml:"y"`
	Radius float64 `json:"radius" yaml:"radius" toml:"radius"`
}

// Distance returns the Euclidean distance from (x, y) to the hoop centre.
func (h Hoop) Distance(x, y float64) float64 {
	return math.Hypot(x-h.X, y-h.Y)
}

// CheckBallHoop reports whether the ball drops into the hoop on this tick.
// Only a descending ball counts, and a shot scores at most once.
func CheckBallHoop(b *Shot, h Hoop, ballRadius, dist float64) bool {
	if b.Scored || b.VY <= 0 {
		return false
	}
	return dist < h.Radius+ballRadius
}

// OutOfBounds reports whether a ball centre has crossed the floor line or the
// right edge. There is no left or top boundary.
func (s Scene) OutOfBounds(x, y float64) bool {
	return y > s.Height || x > s.Width
}
