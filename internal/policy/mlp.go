package policy

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/vladimirvolkov/basketball/shooter/internal/game"
)

// FormatMLP identifies artifacts this package can evaluate.
const FormatMLP = "mlp/v1"

// Artifact is the document an external trainer exports: the deterministic
// actor of a feed-forward policy plus optional observation statistics.
type Artifact struct {
	Format  string         `json:"format"`
	ObsMean []float64      `json:"obs_mean,omitempty"`
	ObsStd  []float64      `json:"obs_std,omitempty"`
	Layers  []Layer        `json:"layers"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Layer is a dense layer. Weights are stored row-major, one row per output.
type Layer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
}

// MLP evaluates an Artifact.
type MLP struct {
	art    Artifact
	layers []dense
}

type dense struct {
	w   *mat.Dense
	b   *mat.VecDense
	act string
}

// DecodeMLP parses and checks an artifact.
func DecodeMLP(data []byte) (*MLP, error) {
	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArtifact, err)
	}
	return NewMLP(art)
}

func NewMLP(art Artifact) (*MLP, error) {
	if art.Format != FormatMLP {
		return nil, fmt.Errorf("%w: format %q", ErrBadArtifact, art.Format)
	}
	if len(art.Layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrBadArtifact)
	}
	obsLen := len(game.Observation{})
	if (art.ObsMean != nil && len(art.ObsMean) != obsLen) || (art.ObsStd != nil && len(art.ObsStd) != obsLen) {
		return nil, fmt.Errorf("%w: observation statistics must have %d entries", ErrBadArtifact, obsLen)
	}

	in := obsLen
	layers := make([]dense, 0, len(art.Layers))
	for i, l := range art.Layers {
		if len(l.Weights) == 0 || len(l.Weights) != len(l.Bias) {
			return nil, fmt.Errorf("%w: layer %d has %d rows and %d biases", ErrBadArtifact, i, len(l.Weights), len(l.Bias))
		}
		for _, row := range l.Weights {
			if len(row) != in {
				return nil, fmt.Errorf("%w: layer %d expects %d inputs, row has %d", ErrBadArtifact, i, in, len(row))
			}
		}
		switch l.Activation {
		case "tanh", "relu", "linear", "":
		default:
			return nil, fmt.Errorf("%w: layer %d activation %q", ErrBadArtifact, i, l.Activation)
		}
		flat := make([]float64, 0, len(l.Weights)*in)
		for _, row := range l.Weights {
			flat = append(flat, row...)
		}
		layers = append(layers, dense{
			w:   mat.NewDense(len(l.Weights), in, flat),
			b:   mat.NewVecDense(len(l.Bias), append([]float64(nil), l.Bias...)),
			act: l.Activation,
		})
		in = len(l.Weights)
	}
	if in != len(game.Action{}) {
		return nil, fmt.Errorf("%w: output size %d", ErrBadArtifact, in)
	}
	return &MLP{art: art, layers: layers}, nil
}

func (m *MLP) Predict(obs game.Observation) (game.Action, error) {
	x := make([]float64, len(obs))
	for i, v := range obs {
		if m.art.ObsMean != nil {
			v -= m.art.ObsMean[i]
		}
		if m.art.ObsStd != nil {
			v /= math.Max(m.art.ObsStd[i], 1e-8)
		}
		x[i] = v
	}

	v := mat.NewVecDense(len(x), x)
	for _, l := range m.layers {
		rows, _ := l.w.Dims()
		out := mat.NewVecDense(rows, nil)
		out.MulVec(l.w, v)
		out.AddVec(out, l.b)
		for j := 0; j < rows; j++ {
			out.SetVec(j, activate(l.act, out.AtVec(j)))
		}
		v = out
	}
	x = mat.Col(nil, 0, v)

	a, err := game.ActionFromSlice(x)
	if err != nil {
		return game.Action{}, err
	}
	return a.Clamped(), nil
}

func activate(name string, v float64) float64 {
	switch name {
	case "tanh":
		return math.Tanh(v)
	case "relu":
		return math.Max(0, v)
	default:
		return v
	}
}
