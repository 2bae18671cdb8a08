// Package config holds the process-wide settings shared by the training and
// demo drivers. Everything here is fixed once a simulator is constructed.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/vladimirvolkov/basketball/shooter/internal/game"
)

// Render modes
const (
	RenderNone  = "none"
	RenderHuman = "human"
	RenderPNG   = "png"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Scene    game.Scene `yaml:"scene" toml:"scene"`
	Server   Server     `yaml:"server" toml:"server"`
	Training Training   `yaml:"training" toml:"training"`
	Demo     Demo       `yaml:"demo" toml:"demo"`
	Monitor  Monitor    `yaml:"monitor" toml:"monitor"`
	Logging  Logging    `yaml:"logging" toml:"logging"`
}

type Server struct {
	Addr           string        `yaml:"addr" toml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins" toml:"allowed_origins"`
	MaxConnsPerIP  int           `yaml:"max_conns_per_ip" toml:"max_conns_per_ip"`
	MsgRate        int           `yaml:"msg_rate" toml:"msg_rate"`
	MsgWindow      time.Duration `yaml:"msg_window" toml:"msg_window"`
	ReadLimit      int64         `yaml:"read_limit" toml:"read_limit"`
	MaxSessions    int           `yaml:"max_sessions" toml:"max_sessions"`
}

type Training struct {
	ModelsDir  string `yaml:"models_dir" toml:"models_dir"`
	PolicyName string `yaml:"policy_name" toml:"policy_name"`
	Timesteps  int    `yaml:"timesteps" toml:"timesteps"`
	Render     bool   `yaml:"render" toml:"render"`
	Seed       uint64 `yaml:"seed" toml:"seed"`
}

type Demo struct {
	Policy    string        `yaml:"policy" toml:"policy"`
	Shots     int           `yaml:"shots" toml:"shots"`
	Render    string        `yaml:"render" toml:"render"`
	FramesDir string        `yaml:"frames_dir" toml:"frames_dir"`
	FPS       int           `yaml:"fps" toml:"fps"`
	Pause     time.Duration `yaml:"pause" toml:"pause"`
	Seed      uint64        `yaml:"seed" toml:"seed"`
}

type Monitor struct {
	Dir         string `yaml:"dir" toml:"dir"`
	Window      int    `yaml:"window" toml:"window"`
	LogEvery    int    `yaml:"log_every" toml:"log_every"`
	DatabaseURL string `yaml:"database_url" toml:"database_url"`
}

type Logging struct {
	Level    string `yaml:"level" toml:"level"`
	Encoding string `yaml:"encoding" toml:"encoding"`
	Output   string `yaml:"output" toml:"output"`
}

func Default() Config {
	return Config{
		Scene: game.DefaultScene(),
		Server: Server{
			Addr:          ":8080",
			MaxConnsPerIP: 4,
			MsgRate:       5000,
			MsgWindow:     time.Second,
			ReadLimit:     1 << 20,
			MaxSessions:   16,
		},
		Training: Training{
			ModelsDir:  "models",
			PolicyName: "best_shooter",
			Timesteps:  150000,
		},
		Demo: Demo{
			Policy:    "best_shooter",
			Shots:     50,
			Render:    RenderNone,
			FramesDir: "frames",
			FPS:       60,
			Pause:     200 * time.Millisecond,
		},
		Monitor: Monitor{
			Dir:      "logs",
			Window:   100,
			LogEvery: 1000,
		},
		Logging: Logging{
			Level:    "info",
			Encoding: "console",
			Output:   "stdout",
		},
	}
}

// Load reads a YAML or TOML file over the defaults, then applies environment
// overrides. An empty path yields the defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		return fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, ext)
	}
	return nil
}

func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Monitor.DatabaseURL = dsn
	}
	if dir := os.Getenv("MODELS_DIR"); dir != "" {
		c.Training.ModelsDir = dir
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
}

func (c Config) Validate() error {
	if err := c.Scene.Validate(); err != nil {
		return err
	}
	switch c.Demo.Render {
	case RenderNone, RenderHuman, RenderPNG:
	default:
		return fmt.Errorf("%w: render mode %q", ErrInvalidConfig, c.Demo.Render)
	}
	if c.Demo.Shots < 1 {
		return fmt.Errorf("%w: demo shots %d", ErrInvalidConfig, c.Demo.Shots)
	}
	if c.Demo.FPS < 1 {
		return fmt.Errorf("%w: fps %d", ErrInvalidConfig, c.Demo.FPS)
	}
	if c.Server.MsgRate < 1 || c.Server.MsgWindow <= 0 {
		return fmt.Errorf("%w: message rate %d per %s", ErrInvalidConfig, c.Server.MsgRate, c.Server.MsgWindow)
	}
	if c.Monitor.Window < 1 {
		return fmt.Errorf("%w: monitor window %d", ErrInvalidConfig, c.Monitor.Window)
	}
	if c.Training.ModelsDir == "" {
		return fmt.Errorf("%w: models dir is required", ErrInvalidConfig)
	}
	return nil
}
