package game

// Reward scores a finished shot: a flat bonus for a basket, otherwise a
// penalty proportional to the closest approach, plus a fixed penalty when the
// ball left through the floor or the right edge.
func Reward(b Shot, s Scene) float64 {
	if b.Scored {
		return ScoreReward
	}
	r := DistanceWeight * b.MinDistance
	if s.OutOfBounds(b.X, b.Y) {
		r += OutOfBoundsPenalty
	}
	return r
}
