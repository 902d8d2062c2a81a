// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for simulation and server settings.
//
// Defaults live in the DefaultX functions; environment variables parsed
// with caarlos0/env override them.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// =============================================================================
// SIMULATION
// =============================================================================

// SimConfig holds tick and time-loop tuning
type SimConfig struct {
	TickRate          int     `env:"TICK_RATE"`
	TransitionSeconds float64 `env:"TRANSITION_SECONDS"`
	CameraOffsetX     float64 `env:"CAMERA_OFFSET_X"`
	CameraOffsetY     float64 `env:"CAMERA_OFFSET_Y"`
	CameraOffsetZ     float64 `env:"CAMERA_OFFSET_Z"`
	FallLimitY        float64 `env:"FALL_LIMIT_Y"`
	RevealDelay       float64 `env:"REVEAL_DELAY_SECONDS"`
	NoticeSeconds     float64 `env:"NOTICE_SECONDS"`
}

// DefaultSim returns the default simulation configuration
func DefaultSim() SimConfig {
	return SimConfig{
		TickRate:          30,
		TransitionSeconds: 1.0,
		CameraOffsetX:     0,
		CameraOffsetY:     10,
		CameraOffsetZ:     -10,
		FallLimitY:        -5,
		RevealDelay:       1.0,
		NoticeSeconds:     2.0,
	}
}

// =============================================================================
// SERVER
// =============================================================================

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port        int      `env:"PORT"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
}

// DefaultServer returns the default server configuration
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:        3000,
		CORSOrigins: []string{"*"},
	}
}

// DebugConfig controls the localhost-only metrics and pprof server
type DebugConfig struct {
	Addr     string `env:"DEBUG_ADDR"`
	Disabled bool   `env:"DISABLE_DEBUG_SERVER"`
}

// DefaultDebug returns the default debug server configuration
func DefaultDebug() DebugConfig {
	return DebugConfig{Addr: "127.0.0.1:6060"}
}

// =============================================================================
// LEVEL, EVENTS, INPUT, LOGGING
// =============================================================================

// LevelConfig selects the level file; empty uses the built-in level
type LevelConfig struct {
	Path string `env:"LEVEL_PATH"`
}

// EventLogConfig controls the JSONL event log
type EventLogConfig struct {
	Path string `env:"EVENT_LOG_PATH"`
}

// DefaultEventLog returns the default event log configuration
func DefaultEventLog() EventLogConfig {
	return EventLogConfig{Path: "events.jsonl"}
}

// InputConfig sizes the command queue and its per-source limiter
type InputConfig struct {
	BufferSize int     `env:"INPUT_BUFFER"`
	Rate       float64 `env:"INPUT_RATE"`
	Burst      int     `env:"INPUT_BURST"`
}

// DefaultInput returns the default input configuration
func DefaultInput() InputConfig {
	return InputConfig{
		BufferSize: 256,
		Rate:       60,
		Burst:      120,
	}
}

// LogConfig holds the log level name
type LogConfig struct {
	Level string `env:"LOG_LEVEL"`
}

// DefaultLog returns the default logging configuration
func DefaultLog() LogConfig {
	return LogConfig{Level: "info"}
}

// =============================================================================
// AGGREGATE
// =============================================================================

// AppConfig aggregates every section
type AppConfig struct {
	Sim      SimConfig
	Server   ServerConfig
	Debug    DebugConfig
	Level    LevelConfig
	EventLog EventLogConfig
	Input    InputConfig
	Log      LogConfig
}

// Default returns every section at its default
func Default() AppConfig {
	return AppConfig{
		Sim:      DefaultSim(),
		Server:   DefaultServer(),
		Debug:    DefaultDebug(),
		EventLog: DefaultEventLog(),
		Input:    DefaultInput(),
		Log:      DefaultLog(),
	}
}

// Load applies environment overrides to the defaults and validates them
func Load() (AppConfig, error) {
	cfg := Default()
	if err := env.Parse(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with
func (c AppConfig) Validate() error {
	var errs []error
	if c.Sim.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("TICK_RATE must be positive, got %d", c.Sim.TickRate))
	}
	if c.Sim.TransitionSeconds < 0 {
		errs = append(errs, fmt.Errorf("TRANSITION_SECONDS must not be negative"))
	}
	if c.Sim.RevealDelay < 0 {
		errs = append(errs, fmt.Errorf("REVEAL_DELAY_SECONDS must not be negative"))
	}
	if c.Sim.NoticeSeconds < 0 {
		errs = append(errs, fmt.Errorf("NOTICE_SECONDS must not be negative"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Server.Port))
	}
	if c.Input.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("INPUT_BUFFER must be positive"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error", "":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL unknown: %q", c.Log.Level))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
