package policy

import (
	"fmt"

	"github.com/vladimirvolkov/basketball/shooter/internal/game"
)

// Analytic aims every shot with the closed-form solver, preferring the
// highest arc whose power is within range. It is a baseline to compare
// trained policies against.
type Analytic struct {
	scene game.Scene
	step  float64
}

func NewAnalytic(scene game.Scene) *Analytic {
	return &Analytic{scene: scene, step: 0.5}
}

// Predict expects an observation taken at reset, when the ball sits on the
// start line.
func (a *Analytic) Predict(obs game.Observation) (game.Action, error) {
	x := obs[0]
	for angle := a.scene.MaxAngle; angle >= a.scene.MinAngle; angle -= a.step {
		power, ok := game.AimShot(a.scene, x, angle)
		if !ok || power < a.scene.MinPower || power > a.scene.MaxPower {
			continue
		}
		return a.scene.ActionFor(angle, power), nil
	}
	return game.Action{}, fmt.Errorf("%w: start x %.1f", ErrNoSolution, x)
}
