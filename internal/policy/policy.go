// Package policy turns observations into actions. Policies are trained
// elsewhere; this package only loads and evaluates them.
package policy

import (
	"errors"

	"github.com/vladimirvolkov/basketball/shooter/internal/game"
)

var (
	ErrArtifactNotFound = errors.New("policy artifact not found")
	ErrBadArtifact      = errors.New("malformed policy artifact")
	ErrInvalidName      = errors.New("invalid policy name")
	ErrNoSolution       = errors.New("no shot reaches the hoop")
)

// Policy maps an observation to an action deterministically.
type Policy interface {
	Predict(obs game.Observation) (game.Action, error)
}

// Open loads the named artifact from the store and decodes it.
func Open(store *Store, name string) (Policy, error) {
	data, err := store.Load(name)
	if err != nil {
		return nil, err
	}
	return DecodeMLP(data)
}
