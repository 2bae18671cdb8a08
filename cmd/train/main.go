// Command train serves the shot simulator to an external policy trainer.
// The trainer connects to /ws/env, drives reset/step over the wire, uploads
// its exported policy with save_policy and ends the run with training_done.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vladimirvolkov/basketball/shooter/internal/bridge"
	"github.com/vladimirvolkov/basketball/shooter/internal/config"
	"github.com/vladimirvolkov/basketball/shooter/internal/logging"
	"github.com/vladimirvolkov/basketball/shooter/internal/middleware"
	"github.com/vladimirvolkov/basketball/shooter/internal/monitor"
	"github.com/vladimirvolkov/basketball/shooter/internal/policy"
	"github.com/vladimirvolkov/basketball/shooter/internal/render"
	"github.com/vladimirvolkov/basketball/shooter/internal/ws"
)

type health struct {
	Status  string        `json:"status"`
	RunID   string        `json:"runId"`
	Hub     ws.HubStats   `json:"hub"`
	Monitor monitor.Stats `json:"monitor"`
}

func main() {
	configPath := flag.String("config", "", "YAML or TOML config file")
	addr := flag.String("addr", "", "listen address, overrides server.addr")
	runID := flag.String("run", "", "run id, random when empty")
	renderShots := flag.Bool("render", false, "broadcast training shots to /ws/watch")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *renderShots {
		cfg.Training.Render = true
	}
	if *runID == "" {
		*runID = uuid.NewString()
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Encoding, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log = log.With(zap.String("run", *runID))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	csvSink, err := monitor.NewCSVSink(filepath.Join(cfg.Monitor.Dir, *runID), *runID, bridge.EnvID)
	if err != nil {
		log.Fatal("monitor csv", zap.Error(err))
	}
	sinks := []monitor.Sink{csvSink}
	if cfg.Monitor.DatabaseURL != "" {
		pg, err := monitor.OpenPostgres(ctx, cfg.Monitor.DatabaseURL, *runID)
		if err != nil {
			log.Fatal("monitor postgres", zap.Error(err))
		}
		sinks = append(sinks, pg)
	}
	mon := monitor.New(*runID, cfg.Monitor.Window, cfg.Monitor.LogEvery, log.Named("monitor"), sinks...)
	defer func() {
		if err := mon.Close(); err != nil {
			log.Warn("close monitor", zap.Error(err))
		}
	}()

	store := policy.NewStore(cfg.Training.ModelsDir)

	limiter := middleware.NewIPRateLimiter(cfg.Server.MaxConnsPerIP, cfg.Server.MsgRate, cfg.Server.MsgWindow)
	defer limiter.Close()

	// sessions live on runCtx so they end with the run, not with their
	// HTTP handler
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	manager := bridge.NewManager(runCtx, bridge.Options{
		Scene:      cfg.Scene,
		Seed:       cfg.Training.Seed,
		Store:      store,
		Monitor:    mon,
		PolicyName: cfg.Training.PolicyName,
		Timesteps:  cfg.Training.Timesteps,
	}, log.Named("bridge"))
	hub := ws.NewHub(manager, limiter, ws.HubOptions{
		OriginPatterns: cfg.Server.AllowedOrigins,
		MaxSessions:    cfg.Server.MaxSessions,
		ReadLimit:      cfg.Server.ReadLimit,
	}, log.Named("hub"))
	manager.SetHub(hub)

	if cfg.Training.Render {
		b, err := render.NewBroadcaster(hub, cfg.Scene)
		if err != nil {
			log.Fatal("spectator feed", zap.Error(err))
		}
		manager.SetRenderer(b)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/env", hub.HandleEnv)
	mux.HandleFunc("/ws/watch", hub.HandleWatch)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health{
			Status:  "ok",
			RunID:   *runID,
			Hub:     hub.Stats(),
			Monitor: mon.Stats(),
		})
	})
	mux.Handle("/", middleware.NoCache(render.ViewerHandler()))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           middleware.SecurityHeaders(mux),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("environment server starting",
			zap.String("addr", cfg.Server.Addr),
			zap.String("env", bridge.EnvID),
			zap.String("policy", cfg.Training.PolicyName),
			zap.Int("timesteps", cfg.Training.Timesteps),
			zap.Bool("render", cfg.Training.Render),
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			log.Info("shutting down")
		case <-manager.TrainingDone():
			log.Info("trainer reported training done")
		}
		cancelRun()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("server error", zap.Error(err))
	}

	stats := mon.Stats()
	log.Info("run finished",
		zap.Int("episodes", stats.Episodes),
		zap.Float64("mean_reward", stats.MeanReward),
		zap.Float64("success_rate", stats.SuccessRate),
	)
	if _, err := store.Load(cfg.Training.PolicyName); err != nil {
		if errors.Is(err, policy.ErrArtifactNotFound) {
			log.Warn("no policy artifact was uploaded", zap.String("policy", cfg.Training.PolicyName))
			return
		}
		log.Error("check policy artifact", zap.Error(err))
		return
	}
	log.Info("policy saved",
		zap.String("policy", cfg.Training.PolicyName),
		zap.String("dir", store.Dir()),
	)
}
