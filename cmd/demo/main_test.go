package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vladimirvolkov/basketball/shooter/internal/config"
	"github.com/vladimirvolkov/basketball/shooter/internal/game"
	"github.com/vladimirvolkov/basketball/shooter/internal/policy"
	"github.com/vladimirvolkov/basketball/shooter/internal/render"
)

type frameCounter struct {
	frames int
	finals int
}

func (c *frameCounter) Render(f render.Frame) error {
	c.frames++
	if f.Final {
		c.finals++
	}
	return nil
}

func (c *frameCounter) Close() error { return nil }

func TestPlaySeries_AnalyticScoresEveryShot(t *testing.T) {
	sim, err := game.NewSimulator(game.DefaultScene(), game.WithSeed(3))
	require.NoError(t, err)

	played := playSeries(context.Background(), sim, policy.NewAnalytic(game.DefaultScene()), nil, nil, 20, 0, zap.NewNop())
	require.Equal(t, 20, played)
	require.Equal(t, 20, sim.Score())
}

func TestPlaySeries_RendersEachShot(t *testing.T) {
	sim, err := game.NewSimulator(game.DefaultScene(), game.WithSeed(5))
	require.NoError(t, err)

	counter := &frameCounter{}
	played := playSeries(context.Background(), sim, policy.NewAnalytic(game.DefaultScene()), counter, nil, 3, time.Millisecond, zap.NewNop())
	require.Equal(t, 3, played)
	require.Equal(t, 3, counter.finals)
	require.Greater(t, counter.frames, 3)
}

func TestPlaySeries_StopsWhenCancelled(t *testing.T) {
	sim, err := game.NewSimulator(game.DefaultScene())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Zero(t, playSeries(ctx, sim, policy.NewAnalytic(game.DefaultScene()), nil, nil, 50, 0, zap.NewNop()))
}

func TestOpenPolicy_MissingArtifact(t *testing.T) {
	cfg := config.Default()
	cfg.Training.ModelsDir = t.TempDir()
	cfg.Demo.Policy = "best_shooter"

	_, err := openPolicy(cfg)
	require.ErrorIs(t, err, policy.ErrArtifactNotFound)

	cfg.Demo.Policy = AnalyticPolicy
	p, err := openPolicy(cfg)
	require.NoError(t, err)
	require.IsType(t, &policy.Analytic{}, p)
}

func TestViewerURL(t *testing.T) {
	require.Equal(t, "http://localhost:8080", viewerURL(":8080"))
	require.Equal(t, "http://127.0.0.1:9000", viewerURL("127.0.0.1:9000"))
}

func TestDemoLogOutput(t *testing.T) {
	require.Equal(t, "stderr", demoLogOutput(""))
	require.Equal(t, "stderr", demoLogOutput("stdout"))
	require.Equal(t, "logs/demo.log", demoLogOutput("logs/demo.log"))
}
