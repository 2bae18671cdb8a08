package game

import "iter"

// Flight is a launched shot. Its ticks are produced lazily and can be
// consumed only once; Result plays out whatever is left.
type Flight struct {
	sim    *Simulator
	action Action
	angle  float64
	power  float64
	startX float64
	startY float64

	consumed bool
	result   *StepResult
}

// Action returns the clamped action the shot was launched with.
func (f *Flight) Action() Action { return f.action }

// Launch returns the physical launch parameters.
func (f *Flight) Launch() (angleDeg, power float64) { return f.angle, f.power }

// Start returns the launch point.
func (f *Flight) Start() (x, y float64) { return f.startX, f.startY }

// Ticks yields one snapshot per physics tick until the shot is terminal.
// A second call yields nothing.
func (f *Flight) Ticks() iter.Seq[Tick] {
	return func(yield func(Tick) bool) {
		if f.consumed {
			return
		}
		f.consumed = true
		for f.live() && !f.sim.shot.Complete {
			if !yield(f.sim.advance()) {
				return
			}
		}
	}
}

func (f *Flight) live() bool { return f.sim.active == f }

// Result finishes the flight and returns the episode result.
func (f *Flight) Result() StepResult {
	if f.result != nil {
		return *f.result
	}
	f.consumed = true
	for !f.sim.shot.Complete {
		f.sim.advance()
	}
	if f.sim.active == f {
		f.sim.active = nil
	}

	res := StepResult{
		Observation: f.sim.Observation(),
		Reward:      Reward(f.sim.shot, f.sim.scene),
		Terminated:  true,
		Truncated:   false,
		Info:        map[string]any{},
	}
	f.result = &res
	return res
}
