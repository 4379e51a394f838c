package humanoid

import (
	"math"
	"math/rand"

	"github.com/xkilldash9x/unfollowed/internal/config"
)

// Config holds the motion parameters of a Humanoid. The *Mean/*StdDev pairs
// describe the population a session persona is drawn from; the plain fields
// hold the persona itself once FinalizeSessionPersona has run.
type Config struct {
	Rng *rand.Rand

	FittsAMean             float64
	FittsAStdDev           float64
	FittsBMean             float64
	FittsBStdDev           float64
	GaussianStrengthMean   float64
	GaussianStrengthStdDev float64
	PerlinAmplitudeMean    float64
	PerlinAmplitudeStdDev  float64

	// JitterPixels bounds how far a natural click may land from its aim point.
	JitterPixels float64

	ClickHoldMinMs     int
	ClickHoldMaxMs     int
	ScrollNotchPauseMs int
	KeyPauseMeanMs     float64
	KeyPauseStdDevMs   float64
	KeyPauseMinMs      float64

	FatigueIncreaseRate float64
	FatigueRecoveryRate float64

	// Session persona.
	FittsA           float64
	FittsB           float64
	GaussianStrength float64
	PerlinAmplitude  float64
}

// DefaultConfig mirrors the configuration defaults.
func DefaultConfig() Config {
	return Config{
		FittsAMean:             100.0,
		FittsAStdDev:           15.0,
		FittsBMean:             120.0,
		FittsBStdDev:           20.0,
		GaussianStrengthMean:   0.5,
		GaussianStrengthStdDev: 0.1,
		PerlinAmplitudeMean:    2.5,
		PerlinAmplitudeStdDev:  0.5,
		JitterPixels:           2.0,
		ClickHoldMinMs:         50,
		ClickHoldMaxMs:         120,
		ScrollNotchPauseMs:     60,
		KeyPauseMeanMs:         70,
		KeyPauseStdDevMs:       28,
		KeyPauseMinMs:          25,
		FatigueIncreaseRate:    0.005,
		FatigueRecoveryRate:    0.01,
	}
}

// ConfigFrom converts the user-facing settings.
func ConfigFrom(s config.HumanoidConfig) Config {
	c := DefaultConfig()
	c.FittsAMean, c.FittsAStdDev = s.FittsAMean, s.FittsAStdDev
	c.FittsBMean, c.FittsBStdDev = s.FittsBMean, s.FittsBStdDev
	c.GaussianStrengthMean, c.GaussianStrengthStdDev = s.GaussianStrengthMean, s.GaussianStrengthStdDev
	c.PerlinAmplitudeMean, c.PerlinAmplitudeStdDev = s.PerlinAmplitudeMean, s.PerlinAmplitudeStdDev
	c.JitterPixels = s.JitterPixels
	c.ClickHoldMinMs, c.ClickHoldMaxMs = s.ClickHoldMinMs, s.ClickHoldMaxMs
	c.ScrollNotchPauseMs = s.ScrollNotchPauseMs
	c.KeyPauseMeanMs, c.KeyPauseStdDevMs = s.KeyPauseMeanMs, s.KeyPauseStdDevMs
	c.FatigueIncreaseRate, c.FatigueRecoveryRate = s.FatigueIncreaseRate, s.FatigueRecoveryRate
	return c
}

// FinalizeSessionPersona draws this session's motion persona from the
// configured distributions.
func (c *Config) FinalizeSessionPersona(rng *rand.Rand) {
	c.FittsA = sampleGaussian(rng, c.FittsAMean, c.FittsAStdDev, 10)
	c.FittsB = sampleGaussian(rng, c.FittsBMean, c.FittsBStdDev, 10)
	c.GaussianStrength = sampleGaussian(rng, c.GaussianStrengthMean, c.GaussianStrengthStdDev, 0)
	c.PerlinAmplitude = sampleGaussian(rng, c.PerlinAmplitudeMean, c.PerlinAmplitudeStdDev, 0)
}

// sampleGaussian draws from N(mean, stdDev) and clamps at floor.
func sampleGaussian(rng *rand.Rand, mean, stdDev, floor float64) float64 {
	v := mean + rng.NormFloat64()*stdDev
	return math.Max(floor, v)
}
