package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// DefaultEnvPrefix is the default prefix for environment variables
const (
	DefaultEnvPrefix = "CONSTELLATION_"
	MinPort          = 1024
	MaxPort          = 65535

	MinNodeCount = 2   // Smallest constellation that still has two endpoints
	MaxNodeCount = 128 // Routing tables are dense N x N matrices

	DefaultPort          = uint16(8080)
	DefaultFrameInterval = 33 * time.Millisecond
	DefaultMaxTickDelta  = 250 * time.Millisecond
	DefaultNodeCount     = 28
	DefaultCanvasWidth   = 1280.0
	DefaultCanvasHeight  = 720.0
	DefaultSendDeadline  = 6 * time.Second
	DefaultSubjectPrefix = "constellation.events"
)

// Config represents the host configuration
type Config struct {
	// Serving
	Host       string
	Port       uint16
	ListenAddr string // Derived host:port the HTTP server binds

	// Frame loop
	FrameInterval time.Duration // Cadence of the tick/broadcast loop
	MaxTickDelta  time.Duration // Clamp for deltas after a stalled loop

	// Scene
	NodeCount    int
	CanvasWidth  float64
	CanvasHeight float64
	Seed         int64 // 0 rolls a seed from the clock at startup

	// Simulation knobs
	NetworkSpeed      float64 // Scales protocol cadence timers
	PacketSpeed       float64 // Scales packet travel
	MaxDiscoveryEdges int
	ReducedMotion     bool
	SendDeadline      time.Duration // Default deadline for queued sends

	// Event publishing
	NATSURL       string // Empty disables publishing
	SubjectPrefix string

	// Logging
	LogLevel string

	// Scene presets
	PresetsPath string
	Preset      string
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port < MinPort {
		return fmt.Errorf("port must be between %d and %d", MinPort, MaxPort)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.FrameInterval <= 0 {
		return fmt.Errorf("frame interval must be positive")
	}
	if c.MaxTickDelta < c.FrameInterval {
		return fmt.Errorf("max tick delta (%s) must be at least the frame interval (%s)",
			c.MaxTickDelta, c.FrameInterval)
	}
	if c.NodeCount < MinNodeCount || c.NodeCount > MaxNodeCount {
		return fmt.Errorf("node count must be between %d and %d", MinNodeCount, MaxNodeCount)
	}
	if c.CanvasWidth <= 0 || c.CanvasHeight <= 0 {
		return fmt.Errorf("canvas extents must be positive")
	}
	if c.NetworkSpeed <= 0 {
		return fmt.Errorf("network speed multiplier must be positive")
	}
	if c.PacketSpeed <= 0 {
		return fmt.Errorf("packet speed multiplier must be positive")
	}
	if c.MaxDiscoveryEdges <= 0 {
		return fmt.Errorf("max discovery edges must be positive")
	}
	if c.SendDeadline <= 0 {
		return fmt.Errorf("send deadline must be positive")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if c.Preset != "" && c.PresetsPath == "" {
		return fmt.Errorf("preset %q requested without a presets path", c.Preset)
	}
	return nil
}

// Load loads configuration from environment variables, applying the
// selected scene preset on top when one is configured
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	loader := NewEnvLoader(DefaultEnvPrefix)
	loader.LoadAll()

	cfg := &Config{}
	var err error

	// Serving
	if cfg.Host, err = loader.GetStringValidated("HOST", "0.0.0.0", ValidateNotEmpty); err != nil {
		return nil, fmt.Errorf("invalid host: %w", err)
	}
	if cfg.Port, err = loader.GetUint16("PORT", DefaultPort); err != nil {
		return nil, fmt.Errorf("invalid port: %w", err)
	}
	cfg.ListenAddr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	// Frame loop
	if cfg.FrameInterval, err = loader.GetDuration("FRAME_INTERVAL", DefaultFrameInterval); err != nil {
		return nil, fmt.Errorf("invalid frame interval: %w", err)
	}
	if cfg.MaxTickDelta, err = loader.GetDuration("MAX_TICK_DELTA", DefaultMaxTickDelta); err != nil {
		return nil, fmt.Errorf("invalid max tick delta: %w", err)
	}

	// Scene
	if cfg.NodeCount, err = loader.GetInt("NODE_COUNT", DefaultNodeCount); err != nil {
		return nil, fmt.Errorf("invalid node count: %w", err)
	}
	if cfg.CanvasWidth, err = loader.GetFloat64("CANVAS_WIDTH", DefaultCanvasWidth); err != nil {
		return nil, fmt.Errorf("invalid canvas width: %w", err)
	}
	if cfg.CanvasHeight, err = loader.GetFloat64("CANVAS_HEIGHT", DefaultCanvasHeight); err != nil {
		return nil, fmt.Errorf("invalid canvas height: %w", err)
	}
	if cfg.Seed, err = loader.GetInt64("SEED", 0); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}

	// Simulation knobs
	if cfg.NetworkSpeed, err = loader.GetFloat64("NETWORK_SPEED", 1.0); err != nil {
		return nil, fmt.Errorf("invalid network speed: %w", err)
	}
	if cfg.PacketSpeed, err = loader.GetFloat64("PACKET_SPEED", 1.0); err != nil {
		return nil, fmt.Errorf("invalid packet speed: %w", err)
	}
	if cfg.MaxDiscoveryEdges, err = loader.GetInt("MAX_DISCOVERY_EDGES", 24); err != nil {
		return nil, fmt.Errorf("invalid max discovery edges: %w", err)
	}
	cfg.ReducedMotion = loader.GetBool("REDUCED_MOTION", false)
	if cfg.SendDeadline, err = loader.GetDuration("SEND_DEADLINE", DefaultSendDeadline); err != nil {
		return nil, fmt.Errorf("invalid send deadline: %w", err)
	}

	// Event publishing
	cfg.NATSURL = loader.GetString("NATS_URL", "")
	if cfg.SubjectPrefix, err = loader.GetStringValidated("NATS_SUBJECT_PREFIX", DefaultSubjectPrefix, ValidateNotEmpty); err != nil {
		return nil, fmt.Errorf("invalid subject prefix: %w", err)
	}

	// Logging
	cfg.LogLevel = loader.GetString("LOG_LEVEL", "info")

	// Scene presets override the environment for the fields they set
	cfg.PresetsPath = loader.GetString("PRESETS_PATH", "")
	cfg.Preset = loader.GetString("PRESET", "")
	if cfg.Preset != "" {
		if cfg.PresetsPath == "" {
			return nil, fmt.Errorf("preset %q requested without %sPRESETS_PATH", cfg.Preset, DefaultEnvPrefix)
		}
		presets, err := LoadPresets(cfg.PresetsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load presets: %w", err)
		}
		preset, ok := presets[cfg.Preset]
		if !ok {
			return nil, fmt.Errorf("unknown preset %q in %s", cfg.Preset, cfg.PresetsPath)
		}
		preset.applyTo(cfg)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
