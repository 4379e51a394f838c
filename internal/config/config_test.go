// File: internal/config/config_test.go
package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/unfollowed/api/schemas"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "unfollowed", cfg.Logger.ServiceName)
	assert.Equal(t, schemas.Rect{X: 540, Y: 220, W: 840, H: 640}, cfg.Screen.Region)
	assert.Equal(t, 0.8, cfg.Vision.MatchThreshold)
	assert.Equal(t, 0.9, cfg.Vision.ConfirmThreshold)
	assert.Equal(t, []float64{0.9, 0.95, 1.0, 1.05, 1.1}, cfg.Vision.Scales)
	assert.Equal(t, 72, cfg.Vision.RowHeight)
	assert.Equal(t, OCRRegion{OffsetX: 80, OffsetY: 12, Width: 320, Height: 32}, cfg.Vision.OCRRegion)
	assert.Equal(t, 10*time.Second, cfg.Timing.MinActionDelay)
	assert.Equal(t, 30*time.Second, cfg.Timing.MaxActionDelay)
	assert.Equal(t, 10, cfg.Timing.PauseEveryActions)
	assert.Equal(t, 500*time.Millisecond, cfg.Timing.ConfirmPollInterval)
	assert.Equal(t, 8, cfg.Timing.ConfirmPollAttempts)
	assert.Equal(t, 150, cfg.Limits.DailyCap)
	assert.Equal(t, 30, cfg.Limits.ActionsPerSession)
	assert.Equal(t, "sqlite", cfg.Journal.Driver)
	assert.Equal(t, schemas.ActionUnfollow, cfg.Run.ActionKind())
	assert.Equal(t, []string{"action_blocked.png"}, cfg.Vision.Templates.Block)
	assert.Equal(t, 50, cfg.Humanoid.ClickHoldMinMs)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, NewDefaultConfig().Validate())
	})

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"confirm threshold not stricter", func(c *Config) { c.Vision.ConfirmThreshold = 0.8 }, "must be stricter"},
		{"match threshold out of range", func(c *Config) { c.Vision.MatchThreshold = 1.5 }, "MatchThreshold"},
		{"empty scales", func(c *Config) { c.Vision.Scales = nil }, "Scales"},
		{"negative scale", func(c *Config) { c.Vision.Scales = []float64{1, -1} }, "Scales"},
		{"inverted delays", func(c *Config) { c.Timing.MinActionDelay = time.Minute }, "min_action_delay"},
		{"zero daily cap", func(c *Config) { c.Limits.DailyCap = 0 }, "DailyCap"},
		{"region outside screen", func(c *Config) { c.Screen.Region = schemas.Rect{X: 1800, Y: 0, W: 400, H: 100} }, "outside"},
		{"ocr region taller than row", func(c *Config) { c.Vision.OCRRegion.Height = 80 }, "row_height"},
		{"unknown segmentation", func(c *Config) { c.Vision.Segmentation = "magic" }, "Segmentation"},
		{"postgres without url", func(c *Config) { c.Journal.Driver = "postgres" }, "database_url"},
		{"unknown action", func(c *Config) { c.Run.Action = "block" }, "Action"},
		{"click hold inverted", func(c *Config) { c.Humanoid.ClickHoldMaxMs = 10 }, "ClickHoldMaxMs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// -- Loading Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("yaml overrides defaults", func(t *testing.T) {
		yamlConfig := []byte(`
screen:
  region:
    x: 100
    y: 100
    w: 600
    h: 500
vision:
  match_threshold: 0.75
  segmentation: gap
timing:
  min_action_delay: 2s
  max_action_delay: 4s
limits:
  daily_cap: 40
run:
  dry_run: true
  action: follow
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, schemas.Rect{X: 100, Y: 100, W: 600, H: 500}, cfg.Screen.Region)
		assert.Equal(t, 0.75, cfg.Vision.MatchThreshold)
		assert.Equal(t, 0.9, cfg.Vision.ConfirmThreshold, "unset keys keep their defaults")
		assert.Equal(t, "gap", cfg.Vision.Segmentation)
		assert.Equal(t, 2*time.Second, cfg.Timing.MinActionDelay)
		assert.Equal(t, 40, cfg.Limits.DailyCap)
		assert.True(t, cfg.Run.DryRun)
		assert.Equal(t, schemas.ActionFollow, cfg.Run.ActionKind())
	})

	t.Run("invalid yaml values are rejected", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("limits.daily_cap", -3)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("journal url from environment", func(t *testing.T) {
		t.Setenv("UNFOLLOWED_JOURNAL_URL", "postgres://u:p@localhost/unfollowed")
		v := viper.New()
		SetDefaults(v)
		v.Set("journal.driver", "postgres")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "postgres://u:p@localhost/unfollowed", cfg.Journal.DatabaseURL)
	})

	t.Run("home directory paths are expanded", func(t *testing.T) {
		home, err := homedir.Dir()
		require.NoError(t, err)

		v := viper.New()
		SetDefaults(v)
		v.Set("journal.path", "~/unfollowed/journal.db")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "unfollowed", "journal.db"), cfg.Journal.Path)
	})
}
