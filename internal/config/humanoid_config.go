// File: internal/config/humanoid_config.go
// This file defines the HumanoidConfig struct, which contains the tunable
// parameters of the human-like input simulation: Fitts's law timing, motion
// noise, click holds, scroll cadence and typing cadence. They are parameters of
// the input capability, supplied by configuration, never computed by the core.
package config

import "github.com/spf13/viper"

// HumanoidConfig configures the human-like input driver.
type HumanoidConfig struct {
	FittsAMean             float64 `mapstructure:"fitts_a_mean" yaml:"fitts_a_mean"`
	FittsAStdDev           float64 `mapstructure:"fitts_a_std_dev" yaml:"fitts_a_std_dev"`
	FittsBMean             float64 `mapstructure:"fitts_b_mean" yaml:"fitts_b_mean"`
	FittsBStdDev           float64 `mapstructure:"fitts_b_std_dev" yaml:"fitts_b_std_dev"`
	GaussianStrengthMean   float64 `mapstructure:"gaussian_strength_mean" yaml:"gaussian_strength_mean"`
	GaussianStrengthStdDev float64 `mapstructure:"gaussian_strength_std_dev" yaml:"gaussian_strength_std_dev"`
	PerlinAmplitudeMean    float64 `mapstructure:"perlin_amplitude_mean" yaml:"perlin_amplitude_mean"`
	PerlinAmplitudeStdDev  float64 `mapstructure:"perlin_amplitude_std_dev" yaml:"perlin_amplitude_std_dev"`
	JitterPixels           float64 `mapstructure:"jitter_pixels" yaml:"jitter_pixels" validate:"gte=0"`
	ClickHoldMinMs         int     `mapstructure:"click_hold_min_ms" yaml:"click_hold_min_ms" validate:"gte=0"`
	ClickHoldMaxMs         int     `mapstructure:"click_hold_max_ms" yaml:"click_hold_max_ms" validate:"gtefield=ClickHoldMinMs"`
	ScrollNotchPauseMs     int     `mapstructure:"scroll_notch_pause_ms" yaml:"scroll_notch_pause_ms" validate:"gte=0"`
	KeyPauseMeanMs         float64 `mapstructure:"key_pause_mean_ms" yaml:"key_pause_mean_ms" validate:"gte=0"`
	KeyPauseStdDevMs       float64 `mapstructure:"key_pause_std_dev_ms" yaml:"key_pause_std_dev_ms" validate:"gte=0"`
	FatigueIncreaseRate    float64 `mapstructure:"fatigue_increase_rate" yaml:"fatigue_increase_rate"`
	FatigueRecoveryRate    float64 `mapstructure:"fatigue_recovery_rate" yaml:"fatigue_recovery_rate"`
}

func setHumanoidDefaults(v *viper.Viper) {
	v.SetDefault("humanoid.fitts_a_mean", 100.0)
	v.SetDefault("humanoid.fitts_a_std_dev", 15.0)
	v.SetDefault("humanoid.fitts_b_mean", 120.0)
	v.SetDefault("humanoid.fitts_b_std_dev", 20.0)
	v.SetDefault("humanoid.gaussian_strength_mean", 0.5)
	v.SetDefault("humanoid.gaussian_strength_std_dev", 0.1)
	v.SetDefault("humanoid.perlin_amplitude_mean", 2.5)
	v.SetDefault("humanoid.perlin_amplitude_std_dev", 0.5)
	v.SetDefault("humanoid.jitter_pixels", 2.0)
	v.SetDefault("humanoid.click_hold_min_ms", 50)
	v.SetDefault("humanoid.click_hold_max_ms", 120)
	v.SetDefault("humanoid.scroll_notch_pause_ms", 60)
	v.SetDefault("humanoid.key_pause_mean_ms", 70.0)
	v.SetDefault("humanoid.key_pause_std_dev_ms", 28.0)
	v.SetDefault("humanoid.fatigue_increase_rate", 0.005)
	v.SetDefault("humanoid.fatigue_recovery_rate", 0.01)
}
