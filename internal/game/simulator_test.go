package game

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSimulator(t *testing.T, scene Scene) *Simulator {
	t.Helper()
	sim, err := NewSimulator(scene, WithSeed(42))
	require.NoError(t, err)
	return sim
}

func TestSimulator_ResetStartsInRange(t *testing.T) {
	scene := DefaultScene()
	sim := newTestSimulator(t, scene)

	for i := 0; i < 1000; i++ {
		obs := sim.Reset()
		shot := sim.Shot()

		require.GreaterOrEqual(t, shot.X, float64(scene.StartMinX))
		require.LessOrEqual(t, shot.X, float64(scene.StartMaxX))
		require.Equal(t, math.Trunc(shot.X), shot.X)
		require.Equal(t, scene.StartY, shot.Y)
		require.Equal(t, PhaseAwaitingShot, shot.Phase)
		require.Zero(t, shot.Ticks)
		require.Zero(t, shot.VX)
		require.Zero(t, shot.VY)
		require.Equal(t, shot.X, obs[0])
		require.InDelta(t, math.Hypot(shot.X-HoopX, shot.Y-HoopY), obs[1], 1e-9)
	}
}

func TestSimulator_StepAlwaysTerminates(t *testing.T) {
	sim := newTestSimulator(t, DefaultScene())
	rng := rand.New(rand.NewPCG(7, 11))

	for i := 0; i < 500; i++ {
		sim.Reset()
		a := Action{rng.Float64()*2 - 1, rng.Float64()*2 - 1}

		res, err := sim.Step(a)
		require.NoError(t, err)
		require.True(t, res.Terminated)
		require.False(t, res.Truncated)
		require.Empty(t, res.Info)
		require.False(t, math.IsNaN(res.Reward) || math.IsInf(res.Reward, 0))
		require.LessOrEqual(t, sim.Shot().Ticks, MaxTicks+1)
		require.True(t, sim.Shot().Phase.Terminal())
	}
}

func TestSimulator_ScoresOnHighArc(t *testing.T) {
	sim := newTestSimulator(t, DefaultScene())
	sim.ResetFrom(400)

	res, err := sim.Step(Action{1.0, 0.2})
	require.NoError(t, err)

	shot := sim.Shot()
	require.True(t, shot.Scored)
	require.Equal(t, PhaseScored, shot.Phase)
	require.Equal(t, ScoreReward, res.Reward)
	require.Equal(t, 1, sim.Score())
	require.Greater(t, shot.VY, 0.0)
}

func TestAimShot_MatchesClosedForm(t *testing.T) {
	scene := DefaultScene()

	power, ok := AimShot(scene, 400, 80)
	require.True(t, ok)
	require.InDelta(t, 21.016, power, 1e-3)

	// the closed form must land inside the hoop on the tick the ball reaches
	// the hoop's x, independent of the simulator
	rad := 80 * math.Pi / 180
	vx, vy0 := power*math.Cos(rad), -power*math.Sin(rad)
	n := (scene.Hoop.X - 400) / vx
	y := scene.StartY + n*vy0 + scene.Gravity*n*(n+1)/2
	require.InDelta(t, scene.Hoop.Y, y, 1e-6)

	sim := newTestSimulator(t, scene)
	sim.ResetFrom(400)
	res, err := sim.Step(scene.ActionFor(80, power))
	require.NoError(t, err)
	require.Equal(t, ScoreReward, res.Reward)
}

func TestAimShot_ScoresAcrossStartRange(t *testing.T) {
	scene := DefaultScene()
	sim := newTestSimulator(t, scene)

	for x := scene.StartMinX; x <= scene.StartMaxX; x += 25 {
		power, ok := AimShot(scene, float64(x), scene.MaxAngle)
		require.True(t, ok, "start %d", x)
		require.GreaterOrEqual(t, power, scene.MinPower)
		require.LessOrEqual(t, power, scene.MaxPower)

		sim.ResetFrom(float64(x))
		res, err := sim.Step(scene.ActionFor(scene.MaxAngle, power))
		require.NoError(t, err)
		require.Equal(t, ScoreReward, res.Reward, "start %d", x)
	}
}

func TestAimShot_NoSolution(t *testing.T) {
	scene := DefaultScene()

	_, ok := AimShot(scene, 900, 60)
	require.False(t, ok, "hoop behind the shooter")

	_, ok = AimShot(scene, 400, 20)
	require.False(t, ok, "flat shot never rises to the hoop")
}

func TestSimulator_MinimumActionMissesShort(t *testing.T) {
	sim := newTestSimulator(t, DefaultScene())
	sim.ResetFrom(600)

	res, err := sim.Step(Action{-1, -1})
	require.NoError(t, err)

	shot := sim.Shot()
	require.False(t, shot.Scored)
	require.Equal(t, PhaseOutOfBounds, shot.Phase)
	require.Greater(t, shot.Y, CanvasHeight)
	require.Less(t, shot.X, CanvasWidth)
	require.Less(t, res.Reward, 0.0)
	require.InDelta(t, DistanceWeight*shot.MinDistance+OutOfBoundsPenalty, res.Reward, 1e-9)
	require.InDelta(t, -48.869, res.Reward, 1e-3)
	require.Zero(t, sim.Score())
}

func TestSimulator_RightWallPenalty(t *testing.T) {
	sim := newTestSimulator(t, DefaultScene())
	sim.ResetFrom(600)

	res, err := sim.Step(Action{-1, 1})
	require.NoError(t, err)

	shot := sim.Shot()
	require.False(t, shot.Scored)
	require.Greater(t, shot.X, CanvasWidth)
	require.LessOrEqual(t, shot.Y, CanvasHeight)
	require.Equal(t, 16, shot.Ticks)
	require.InDelta(t, DistanceWeight*shot.MinDistance+OutOfBoundsPenalty, res.Reward, 1e-9)
	require.InDelta(t, -42.527, res.Reward, 1e-3)
}

func TestSimulator_TimeoutHasNoBoundaryPenalty(t *testing.T) {
	scene := DefaultScene()
	scene.Width = 1e9
	scene.Gravity = 0 // the ball rises forever and never reaches a boundary
	sim := newTestSimulator(t, scene)
	sim.ResetFrom(100)

	res, err := sim.Step(Action{0, 0})
	require.NoError(t, err)

	shot := sim.Shot()
	require.Equal(t, PhaseTimedOut, shot.Phase)
	require.Equal(t, scene.MaxTicks+1, shot.Ticks)
	require.InDelta(t, DistanceWeight*shot.MinDistance, res.Reward, 1e-9)
}

func TestSimulator_AscendingBallNeverScores(t *testing.T) {
	scene := DefaultScene()

	// place the hoop on the rising part of a steep shot
	vx, vy := LaunchVelocity(80, 28)
	x, y := 400.0, scene.StartY
	for i := 0; i < 5; i++ {
		vy += scene.Gravity
		x += vx
		y += vy
	}
	require.Less(t, vy, 0.0)
	scene.Hoop = Hoop{X: x, Y: y, Radius: HoopRadius}

	sim := newTestSimulator(t, scene)
	sim.ResetFrom(400)
	res, err := sim.Step(Action{1, 1})
	require.NoError(t, err)

	shot := sim.Shot()
	require.False(t, shot.Scored)
	require.Less(t, shot.MinDistance, scene.Hoop.Radius+scene.BallRadius)
	require.Less(t, res.Reward, 0.0)
}

func TestSimulator_ClampsOutOfRangeActions(t *testing.T) {
	sim := newTestSimulator(t, DefaultScene())

	sim.ResetFrom(300)
	want, err := sim.Step(Action{1, -1})
	require.NoError(t, err)

	sim.ResetFrom(300)
	got, err := sim.Step(Action{5, -3})
	require.NoError(t, err)

	require.Equal(t, want.Reward, got.Reward)
	require.Equal(t, want.Observation, got.Observation)
}

func TestSimulator_InvalidActions(t *testing.T) {
	sim := newTestSimulator(t, DefaultScene())

	_, err := ActionFromSlice([]float64{0.5})
	require.ErrorIs(t, err, ErrInvalidAction)

	_, err = ActionFromSlice([]float64{0, 0, 0})
	require.ErrorIs(t, err, ErrInvalidAction)

	_, err = sim.Step(Action{math.NaN(), 0})
	require.ErrorIs(t, err, ErrInvalidAction)

	_, err = sim.Step(Action{0, math.Inf(-1)})
	require.ErrorIs(t, err, ErrInvalidAction)

	// a rejected action leaves the shot waiting
	require.Equal(t, PhaseAwaitingShot, sim.Shot().Phase)

	a, err := ActionFromSlice([]float64{0.25, -0.5})
	require.NoError(t, err)
	require.Equal(t, Action{0.25, -0.5}, a)
}

func TestSimulator_StepRequiresReset(t *testing.T) {
	sim := newTestSimulator(t, DefaultScene())

	_, err := sim.Step(Action{0, 0})
	require.NoError(t, err)

	_, err = sim.Step(Action{0, 0})
	require.ErrorIs(t, err, ErrShotComplete)

	sim.Reset()
	_, err = sim.Launch(Action{0, 0})
	require.NoError(t, err)
	_, err = sim.Launch(Action{0, 0})
	require.ErrorIs(t, err, ErrShotInFlight)
}

func TestSimulator_ScoreAccumulates(t *testing.T) {
	sim := newTestSimulator(t, DefaultScene())

	for i := 0; i < 3; i++ {
		sim.ResetFrom(400)
		_, err := sim.Step(Action{1, 0.2})
		require.NoError(t, err)
	}
	sim.ResetFrom(600)
	_, err := sim.Step(Action{-1, -1})
	require.NoError(t, err)

	sim.Reset()
	require.Equal(t, 3, sim.Score())
}

func TestNewSimulator_RejectsBadScene(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Scene)
	}{
		{"zero width", func(s *Scene) { s.Width = 0 }},
		{"negative hoop radius", func(s *Scene) { s.Hoop.Radius = -1 }},
		{"nan gravity", func(s *Scene) { s.Gravity = math.NaN() }},
		{"inverted start range", func(s *Scene) { s.StartMinX, s.StartMaxX = 600, 100 }},
		{"tick cap above hard limit", func(s *Scene) { s.MaxTicks = HardTickLimit + 1 }},
		{"zero tick cap", func(s *Scene) { s.MaxTicks = 0 }},
		{"empty power range", func(s *Scene) { s.MinPower, s.MaxPower = 30, 10 }},
		{"infinite width", func(s *Scene) { s.Width = math.Inf(1) }},
		{"infinite height", func(s *Scene) { s.Height = math.Inf(1) }},
		{"nan hoop x", func(s *Scene) { s.Hoop.X = math.NaN() }},
		{"infinite hoop y", func(s *Scene) { s.Hoop.Y = math.Inf(-1) }},
		{"infinite hoop radius", func(s *Scene) { s.Hoop.Radius = math.Inf(1) }},
		{"infinite ball radius", func(s *Scene) { s.BallRadius = math.Inf(1) }},
		{"infinite start y", func(s *Scene) { s.StartY = math.Inf(1) }},
		{"nan min angle", func(s *Scene) { s.MinAngle = math.NaN() }},
		{"nan max angle", func(s *Scene) { s.MaxAngle = math.NaN() }},
		{"infinite min power", func(s *Scene) { s.MinPower = math.Inf(-1) }},
		{"nan max power", func(s *Scene) { s.MaxPower = math.NaN() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scene := DefaultScene()
			tt.mutate(&scene)
			_, err := NewSimulator(scene)
			require.ErrorIs(t, err, ErrInvalidScene)
		})
	}
}

func TestSimulator_RewardIsFiniteForValidScenes(t *testing.T) {
	sim := newTestSimulator(t, DefaultScene())
	rng := rand.New(rand.NewPCG(3, 5))

	for i := 0; i < 200; i++ {
		sim.Reset()
		res, err := sim.Step(Action{rng.Float64()*2 - 1, rng.Float64()*2 - 1})
		require.NoError(t, err)
		require.False(t, math.IsNaN(res.Reward) || math.IsInf(res.Reward, 0))
		require.False(t, math.IsInf(sim.Shot().MinDistance, 0))
	}
}
