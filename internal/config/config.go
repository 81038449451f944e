// Package config loads daemon configuration by layering defaults, an
// optional YAML file, and environment variables.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/lumen-motion/avatar.track/internal/rig"
)

// Config is the full daemon configuration.
type Config struct {
	// LogLevel controls verbosity: ops, diag, trace.
	LogLevel string `koanf:"log_level"`

	// HTTPAddr is the control API listen address.
	HTTPAddr string `koanf:"http_addr"`

	// UDPAddr is the landmark datagram listen address. Empty disables the
	// UDP transport.
	UDPAddr string `koanf:"udp_addr"`

	// UDPRcvBuf sizes the UDP receive buffer in bytes (0: OS default).
	UDPRcvBuf int `koanf:"udp_rcvbuf"`

	// PipePath reads line-oriented frames from a file or FIFO; "-" reads
	// stdin. Empty disables the pipe transport.
	PipePath string `koanf:"pipe_path"`

	// DBPath locates the sqlite database.
	DBPath string `koanf:"db_path"`

	// Avatar names this pipeline's calibration records.
	Avatar string `koanf:"avatar"`

	// TickHz is the pipeline tick frequency.
	TickHz int `koanf:"tick_hz"`

	// RecordSessions enables pose session recording while frames arrive.
	RecordSessions bool `koanf:"record_sessions"`

	// Retargeting knobs; see rig.AvatarConfig for semantics.
	WindowSize         int     `koanf:"window_size"`
	PositionMultiplier float64 `koanf:"position_multiplier"`
	TimeoutMS          int     `koanf:"timeout_ms"`
	PositionRate       float64 `koanf:"position_rate"`
	SolverRate         float64 `koanf:"solver_rate"`
	SettleDelayMS      int     `koanf:"settle_delay_ms"`
	FootTracking       bool    `koanf:"foot_tracking"`
	DeadZone           float64 `koanf:"dead_zone"`
	SmoothFactor       float64 `koanf:"smooth_factor"`
	Speed              float64 `koanf:"speed"`
	DriftScale         float64 `koanf:"drift_scale"`
	DepthScale         float64 `koanf:"depth_scale"`
}

// New returns the default configuration.
func New() *Config {
	return &Config{
		LogLevel:       "ops",
		HTTPAddr:       ":8090",
		UDPAddr:        ":9050",
		DBPath:         "avatar_track.db",
		Avatar:         "primary",
		TickHz:         30,
		WindowSize:     1,
		TimeoutMS:      500,
		SettleDelayMS:  250,
		RecordSessions: false,
	}
}

// AvatarConfig maps the tuning fields onto the pipeline's config struct.
// Zero fields fall through to the pipeline's own defaults.
func (c *Config) AvatarConfig() rig.AvatarConfig {
	return rig.AvatarConfig{
		WindowSize:         c.WindowSize,
		PositionMultiplier: c.PositionMultiplier,
		Timeout:            time.Duration(c.TimeoutMS) * time.Millisecond,
		PositionRate:       c.PositionRate,
		SolverRate:         c.SolverRate,
		SettleDelay:        time.Duration(c.SettleDelayMS) * time.Millisecond,
		FootTracking:       c.FootTracking,
		DeadZone:           c.DeadZone,
		SmoothFactor:       c.SmoothFactor,
		Speed:              c.Speed,
		DriftScale:         c.DriftScale,
		DepthScale:         c.DepthScale,
	}
}

// TickInterval converts TickHz to a ticker period.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickHz)
}

// Load builds a Config by layering, low to high:
//  1. defaults (New)
//  2. YAML file named by AVATAR_CONFIG, when set
//  3. environment variables with the AVATAR_ prefix
//     (AVATAR_UDP_ADDR -> udp_addr, AVATAR_TICK_HZ -> tick_hz, ...)
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv("AVATAR_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	envProvider := env.Provider("AVATAR_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "avatar_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("http_addr must not be empty")
	}
	if c.TickHz <= 0 {
		return errors.New("tick_hz must be positive")
	}
	if c.WindowSize < 1 {
		return errors.New("window_size must be at least 1")
	}
	if c.Avatar == "" {
		return errors.New("avatar must not be empty")
	}
	return nil
}
