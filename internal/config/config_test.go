package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 30, cfg.Sim.TickRate)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TICK_RATE", "60")
	t.Setenv("FALL_LIMIT_Y", "-12.5")
	t.Setenv("PORT", "8080")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("LEVEL_PATH", "levels/custom.toml")
	t.Setenv("DISABLE_DEBUG_SERVER", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Sim.TickRate)
	assert.Equal(t, -12.5, cfg.Sim.FallLimitY)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "levels/custom.toml", cfg.Level.Path)
	assert.True(t, cfg.Debug.Disabled)
	assert.Equal(t, "debug", cfg.Log.Level)

	// untouched sections keep their defaults
	assert.Equal(t, DefaultInput(), cfg.Input)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("TICK_RATE", "fast")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr string
	}{
		{"defaults", func(c *AppConfig) {}, ""},
		{"zero tick rate", func(c *AppConfig) { c.Sim.TickRate = 0 }, "TICK_RATE"},
		{"negative transition", func(c *AppConfig) { c.Sim.TransitionSeconds = -1 }, "TRANSITION_SECONDS"},
		{"port out of range", func(c *AppConfig) { c.Server.Port = 70000 }, "PORT"},
		{"empty input buffer", func(c *AppConfig) { c.Input.BufferSize = 0 }, "INPUT_BUFFER"},
		{"unknown log level", func(c *AppConfig) { c.Log.Level = "loud" }, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Sim.TickRate = -1
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TICK_RATE")
	assert.Contains(t, err.Error(), "PORT")
}
