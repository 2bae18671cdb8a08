// Command demo plays a series of shots with a stored policy and prints one
// line per shot. With -render human the shots are streamed to a browser
// viewer; with -render png the final frame of every shot is written to disk.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vladimirvolkov/basketball/shooter/internal/config"
	"github.com/vladimirvolkov/basketball/shooter/internal/game"
	"github.com/vladimirvolkov/basketball/shooter/internal/logging"
	"github.com/vladimirvolkov/basketball/shooter/internal/middleware"
	"github.com/vladimirvolkov/basketball/shooter/internal/policy"
	"github.com/vladimirvolkov/basketball/shooter/internal/render"
	"github.com/vladimirvolkov/basketball/shooter/internal/ws"
)

// AnalyticPolicy selects the closed-form baseline instead of a stored artifact.
const AnalyticPolicy = "analytic"

func main() {
	configPath := flag.String("config", "", "YAML or TOML config file")
	policyName := flag.String("policy", "", "stored policy name, or \"analytic\"")
	shots := flag.Int("shots", 0, "number of shots, overrides demo.shots")
	renderMode := flag.String("render", "", "none, human or png, overrides demo.render")
	framesDir := flag.String("frames", "", "output directory for png frames")
	seed := flag.Uint64("seed", 0, "start position seed, random when zero")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *policyName != "" {
		cfg.Demo.Policy = *policyName
	}
	if *shots > 0 {
		cfg.Demo.Shots = *shots
	}
	if *renderMode != "" {
		cfg.Demo.Render = *renderMode
	}
	if *framesDir != "" {
		cfg.Demo.FramesDir = *framesDir
	}
	if *seed != 0 {
		cfg.Demo.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Encoding, demoLogOutput(cfg.Logging.Output))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []game.Option
	if cfg.Demo.Seed != 0 {
		opts = append(opts, game.WithSeed(cfg.Demo.Seed))
	}
	sim, err := game.NewSimulator(cfg.Scene, opts...)
	if err != nil {
		log.Fatal("create simulator", zap.Error(err))
	}

	p, err := openPolicy(cfg)
	if errors.Is(err, policy.ErrArtifactNotFound) {
		log.Fatal("policy artifact not found, run the trainer first",
			zap.String("policy", cfg.Demo.Policy),
			zap.String("dir", cfg.Training.ModelsDir),
		)
	}
	if err != nil {
		log.Fatal("load policy", zap.String("policy", cfg.Demo.Policy), zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	var (
		renderer render.Renderer
		pacer    *render.Pacer
		server   *http.Server
	)
	switch cfg.Demo.Render {
	case config.RenderHuman:
		hub := ws.NewHub(nil, nil, ws.HubOptions{
			OriginPatterns: cfg.Server.AllowedOrigins,
			ReadLimit:      cfg.Server.ReadLimit,
		}, log.Named("hub"))
		b, err := render.NewBroadcaster(hub, cfg.Scene)
		if err != nil {
			log.Fatal("viewer feed", zap.Error(err))
		}
		renderer = b
		pacer = render.NewPacer(cfg.Demo.FPS)
		defer pacer.Stop()

		mux := http.NewServeMux()
		mux.HandleFunc("/ws/watch", hub.HandleWatch)
		mux.Handle("/", middleware.NoCache(render.ViewerHandler()))
		server = &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           middleware.SecurityHeaders(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("viewer: %w", err)
			}
			return nil
		})
		log.Info("waiting for a viewer", zap.String("url", viewerURL(cfg.Server.Addr)))
		if err := waitForViewer(gctx, hub); err != nil {
			log.Info("no viewer connected", zap.Error(err))
		}
	case config.RenderPNG:
		r, err := render.NewRaster(int(cfg.Scene.Width), int(cfg.Scene.Height), cfg.Demo.FramesDir)
		if err != nil {
			log.Fatal("png renderer", zap.Error(err))
		}
		renderer = r
		log.Info("writing frames", zap.String("dir", cfg.Demo.FramesDir))
	}

	fmt.Printf("Loaded policy %q, playing %d shots\n", cfg.Demo.Policy, cfg.Demo.Shots)
	fmt.Println(strings.Repeat("-", 80))
	fmt.Println("Shot    : start x | action | observation | terminated | reward")

	played := playSeries(gctx, sim, p, renderer, pacer, cfg.Demo.Shots, cfg.Demo.Pause, log)

	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("Series of %d shots finished, %d scored.\n", played, sim.Score())

	if renderer != nil {
		if err := renderer.Close(); err != nil {
			log.Warn("close renderer", zap.Error(err))
		}
	}
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("viewer shutdown", zap.Error(err))
		}
	}
	if err := g.Wait(); err != nil {
		log.Error("viewer stopped", zap.Error(err))
	}
}

// demoLogOutput keeps log lines off stdout, which carries the shot table.
func demoLogOutput(output string) string {
	if output == "" || output == "stdout" {
		return "stderr"
	}
	return output
}

func openPolicy(cfg config.Config) (policy.Policy, error) {
	if cfg.Demo.Policy == AnalyticPolicy {
		return policy.NewAnalytic(cfg.Scene), nil
	}
	return policy.Open(policy.NewStore(cfg.Training.ModelsDir), cfg.Demo.Policy)
}

// playSeries shoots n times and returns how many shots were played. It stops
// early when ctx ends.
func playSeries(ctx context.Context, sim *game.Simulator, p policy.Policy, r render.Renderer, pacer *render.Pacer, n int, pause time.Duration, log *zap.Logger) int {
	obs := sim.Reset()
	played := 0
	for i := 1; i <= n; i++ {
		if ctx.Err() != nil {
			break
		}
		startX := obs[0]

		action, err := p.Predict(obs)
		if err != nil {
			log.Error("predict", zap.Int("shot", i), zap.Float64("start_x", startX), zap.Error(err))
			obs = sim.Reset()
			continue
		}
		flight, err := sim.Launch(action)
		if err != nil {
			log.Error("launch", zap.Int("shot", i), zap.Error(err))
			obs = sim.Reset()
			continue
		}

		var res game.StepResult
		if r != nil {
			res, err = render.Play(ctx, i, flight, sim.Scene(), r, pacer)
			if err != nil && ctx.Err() == nil {
				log.Warn("render", zap.Int("shot", i), zap.Error(err))
			}
		} else {
			res = flight.Result()
		}
		played++

		fmt.Printf("Shot %d/%d : %.0f | [%.3f %.3f] | [%.2f %.2f] | %t | %.2f\n",
			i, n, startX,
			flight.Action()[0], flight.Action()[1],
			res.Observation[0], res.Observation[1],
			res.Terminated, res.Reward,
		)

		if r != nil && pause > 0 {
			select {
			case <-time.After(pause):
			case <-ctx.Done():
			}
		}
		if res.Terminated {
			obs = sim.Reset()
		} else {
			obs = res.Observation
		}
	}
	return played
}

func waitForViewer(ctx context.Context, hub *ws.Hub) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for hub.Spectators() == 0 {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func viewerURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
