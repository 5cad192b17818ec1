package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelRaw string `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel    slog.Level

	DataDir string `env:"DATA_DIR" envDefault:"./data"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`
	RedisURL     string `env:"REDIS_URL" envDefault:"localhost:6379"`
	SQLitePath   string `env:"SQLITE_PATH" envDefault:"./novel-engine.db"`

	StartScene    string  `env:"START_SCENE" envDefault:"scene_001"`
	StatsPreset   string  `env:"STATS_PRESET" envDefault:"fantasy"`
	AutoPlaySpeed float64 `env:"AUTO_PLAY_SPEED" envDefault:"2.0"`
	SaveProfile   string  `env:"SAVE_PROFILE"`
}

// Load reads an optional .env file and then the environment. Values already in
// the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the configuration from the environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)

	if !(cfg.AutoPlaySpeed > 0) || math.IsInf(cfg.AutoPlaySpeed, 0) {
		return nil, fmt.Errorf("AUTO_PLAY_SPEED must be positive, got %v", cfg.AutoPlaySpeed)
	}
	switch cfg.StoreBackend {
	case "memory", "redis", "sqlite":
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	return &cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
