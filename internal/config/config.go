// Package config loads process configuration from HUEASSAY_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ayusman/hueassay/internal/sampler"
)

type Config struct {
	Addr     string `env:"ADDR"      envDefault:":8080"`
	DataDir  string `env:"DATA_DIR"`
	WebDir   string `env:"WEB_DIR"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Tray     bool   `env:"TRAY"      envDefault:"false"`

	HookTimeout time.Duration `env:"HOOK_TIMEOUT" envDefault:"10s"`

	CameraID       int     `env:"CAMERA_ID"       envDefault:"0"`
	RecordWidth    int     `env:"RECORD_WIDTH"    envDefault:"1280"`
	RecordHeight   int     `env:"RECORD_HEIGHT"   envDefault:"720"`
	RecordFPS      int     `env:"RECORD_FPS"      envDefault:"15"`
	RecordMaxSecs  int     `env:"RECORD_MAX_SECS" envDefault:"600"`
	ShakeThreshold float64 `env:"SHAKE_THRESHOLD" envDefault:"5"`

	Interval    float64       `env:"INTERVAL"     envDefault:"0.5"`
	EndEpsilon  float64       `env:"END_EPSILON"  envDefault:"0.01"`
	SeekTimeout time.Duration `env:"SEEK_TIMEOUT" envDefault:"5s"`
	SettleDelay time.Duration `env:"SETTLE_DELAY" envDefault:"60ms"`
	StaleCheck  bool          `env:"STALE_CHECK"  envDefault:"true"`
}

// Load parses the environment. An empty DataDir resolves to ~/.hueassay.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "HUEASSAY_"}); err != nil {
		return nil, err
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving data dir: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".hueassay")
	}
	return cfg, nil
}

// Sampler returns the sampling parameters from the environment.
func (c *Config) Sampler() sampler.Config {
	return sampler.Config{
		Interval:    c.Interval,
		EndEpsilon:  c.EndEpsilon,
		SeekTimeout: c.SeekTimeout,
		SettleDelay: c.SettleDelay,
		StaleCheck:  c.StaleCheck,
	}
}

// DBPath is the settings database inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "hueassay.db")
}

// RecordingsDir is where camera recordings are written.
func (c *Config) RecordingsDir() string {
	return filepath.Join(c.DataDir, "recordings")
}

// HooksDir holds one subdirectory per post-analysis hook.
func (c *Config) HooksDir() string {
	return filepath.Join(c.DataDir, "hooks")
}
