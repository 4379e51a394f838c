// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/xkilldash9x/unfollowed/api/schemas"
)

// Config holds the entire application configuration. It is populated by
// viper from (in increasing precedence) defaults, the YAML file, UNFOLLOWED_*
// environment variables and command line flags.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Screen   ScreenConfig   `mapstructure:"screen" yaml:"screen"`
	Vision   VisionConfig   `mapstructure:"vision" yaml:"vision"`
	Timing   TimingConfig   `mapstructure:"timing" yaml:"timing"`
	Limits   LimitsConfig   `mapstructure:"limits" yaml:"limits"`
	Run      RunConfig      `mapstructure:"run" yaml:"run"`
	Journal  JournalConfig  `mapstructure:"journal" yaml:"journal"`
	Humanoid HumanoidConfig `mapstructure:"humanoid" yaml:"humanoid"`
	Input    InputConfig    `mapstructure:"input" yaml:"input"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=console json"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ScreenConfig describes the resolution baseline and the list viewport.
type ScreenConfig struct {
	BaselineWidth  int          `mapstructure:"baseline_width" yaml:"baseline_width" validate:"gt=0"`
	BaselineHeight int          `mapstructure:"baseline_height" yaml:"baseline_height" validate:"gt=0"`
	Region         schemas.Rect `mapstructure:"region" yaml:"region"`
	// CaptureMinInterval throttles screen grabs so retry loops cannot spin.
	CaptureMinInterval time.Duration `mapstructure:"capture_min_interval" yaml:"capture_min_interval" validate:"gte=0"`
}

// Bounds is the full baseline screen.
func (s ScreenConfig) Bounds() schemas.Rect {
	return schemas.Rect{W: s.BaselineWidth, H: s.BaselineHeight}
}

// OCRRegion is the username sub-region inside a list row, relative to the row's top-left.
type OCRRegion struct {
	OffsetX int `mapstructure:"offset_x" yaml:"offset_x" validate:"gte=0"`
	OffsetY int `mapstructure:"offset_y" yaml:"offset_y" validate:"gte=0"`
	Width   int `mapstructure:"width" yaml:"width" validate:"gt=0"`
	Height  int `mapstructure:"height" yaml:"height" validate:"gt=0"`
}

// TemplatesConfig names the reference glyph files inside TemplatesDir.
type TemplatesConfig struct {
	Following     string   `mapstructure:"following" yaml:"following" validate:"required"`
	Follow        string   `mapstructure:"follow" yaml:"follow" validate:"required"`
	Confirm       string   `mapstructure:"confirm" yaml:"confirm" validate:"required"`
	AfterUnfollow string   `mapstructure:"after_unfollow" yaml:"after_unfollow"`
	AfterFollow   string   `mapstructure:"after_follow" yaml:"after_follow"`
	// Cancel is the popup's dismiss button. Dry runs only open the popup
	// when they can close it again.
	Cancel        string   `mapstructure:"cancel" yaml:"cancel"`
	Block         []string `mapstructure:"block" yaml:"block"`
}

// VisionConfig tunes the matcher, the text reader and the locator.
type VisionConfig struct {
	TemplatesDir     string          `mapstructure:"templates_dir" yaml:"templates_dir" validate:"required"`
	MatchThreshold   float64         `mapstructure:"match_threshold" yaml:"match_threshold" validate:"gt=0,lte=1"`
	ConfirmThreshold float64         `mapstructure:"confirm_threshold" yaml:"confirm_threshold" validate:"gt=0,lte=1"`
	Scales           []float64       `mapstructure:"scales" yaml:"scales" validate:"min=1,dive,gt=0"`
	NMSRadius        int             `mapstructure:"nms_radius" yaml:"nms_radius" validate:"gte=0"`
	BandTolerance    int             `mapstructure:"band_tolerance" yaml:"band_tolerance" validate:"gte=0"`
	Segmentation     string          `mapstructure:"segmentation" yaml:"segmentation" validate:"oneof=fixed gap"`
	RowHeight        int             `mapstructure:"row_height" yaml:"row_height" validate:"gt=0"`
	MinGap           int             `mapstructure:"min_gap" yaml:"min_gap" validate:"gt=0"`
	OCRRegion        OCRRegion       `mapstructure:"ocr_region" yaml:"ocr_region"`
	OCRLanguage      string          `mapstructure:"ocr_language" yaml:"ocr_language"`
	Templates        TemplatesConfig `mapstructure:"templates" yaml:"templates"`
	BlockPhrases     []string        `mapstructure:"block_phrases" yaml:"block_phrases"`
}

// TimingConfig holds pacing parameters.
type TimingConfig struct {
	MinActionDelay      time.Duration `mapstructure:"min_action_delay" yaml:"min_action_delay" validate:"gte=0"`
	MaxActionDelay      time.Duration `mapstructure:"max_action_delay" yaml:"max_action_delay" validate:"gte=0"`
	PauseEveryActions   int           `mapstructure:"pause_every_actions" yaml:"pause_every_actions" validate:"gte=0"`
	PauseDuration       time.Duration `mapstructure:"pause_duration" yaml:"pause_duration" validate:"gte=0"`
	PauseJitter         time.Duration `mapstructure:"pause_jitter" yaml:"pause_jitter" validate:"gte=0"`
	ConfirmPollInterval time.Duration `mapstructure:"confirm_poll_interval" yaml:"confirm_poll_interval" validate:"gt=0"`
	ConfirmPollAttempts int           `mapstructure:"confirm_poll_attempts" yaml:"confirm_poll_attempts" validate:"gt=0"`
	ConfirmThreshold    float64       `mapstructure:"confirm_threshold" yaml:"confirm_threshold" validate:"gt=0,lte=1"`
}

// LimitsConfig holds quota and retry bounds.
type LimitsConfig struct {
	DailyCap          int `mapstructure:"daily_cap" yaml:"daily_cap" validate:"gt=0"`
	ActionsPerSession int `mapstructure:"actions_per_session" yaml:"actions_per_session" validate:"gte=0"`
	MaxScrollRetries  int `mapstructure:"max_scroll_retries" yaml:"max_scroll_retries" validate:"gte=0"`
	MaxCaptureRetries int `mapstructure:"max_capture_retries" yaml:"max_capture_retries" validate:"gte=0"`
	ScrollPageAmount  int `mapstructure:"scroll_page_amount" yaml:"scroll_page_amount" validate:"gt=0"`
}

// RunConfig holds the per-invocation switches.
type RunConfig struct {
	DryRun bool   `mapstructure:"dry_run" yaml:"dry_run"`
	Action string `mapstructure:"action" yaml:"action" validate:"oneof=unfollow follow UNFOLLOW FOLLOW"`
	Input  string `mapstructure:"input" yaml:"input"`
}

// ActionKind parses Run.Action.
func (r RunConfig) ActionKind() schemas.ActionKind {
	kind, err := schemas.ParseActionKind(r.Action)
	if err != nil {
		return schemas.ActionUnfollow
	}
	return kind
}

// JournalConfig selects where outcomes are persisted.
type JournalConfig struct {
	Driver      string `mapstructure:"driver" yaml:"driver" validate:"oneof=sqlite postgres none"`
	Path        string `mapstructure:"path" yaml:"path"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
}

// InputConfig selects the OS input backend.
type InputConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend" validate:"oneof=xdotool noop"`
	XdotoolPath string `mapstructure:"xdotool_path" yaml:"xdotool_path"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "unfollowed")
	v.SetDefault("logger.log_file", "logs/unfollowed.log")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Screen --
	v.SetDefault("screen.baseline_width", 1920)
	v.SetDefault("screen.baseline_height", 1080)
	v.SetDefault("screen.region.x", 540)
	v.SetDefault("screen.region.y", 220)
	v.SetDefault("screen.region.w", 840)
	v.SetDefault("screen.region.h", 640)
	v.SetDefault("screen.capture_min_interval", "250ms")

	// -- Vision --
	v.SetDefault("vision.templates_dir", "data/templates")
	v.SetDefault("vision.match_threshold", 0.8)
	v.SetDefault("vision.confirm_threshold", 0.9)
	v.SetDefault("vision.scales", []float64{0.9, 0.95, 1.0, 1.05, 1.1})
	v.SetDefault("vision.nms_radius", 12)
	v.SetDefault("vision.band_tolerance", 8)
	v.SetDefault("vision.segmentation", "fixed")
	v.SetDefault("vision.row_height", 72)
	v.SetDefault("vision.min_gap", 6)
	v.SetDefault("vision.ocr_region.offset_x", 80)
	v.SetDefault("vision.ocr_region.offset_y", 12)
	v.SetDefault("vision.ocr_region.width", 320)
	v.SetDefault("vision.ocr_region.height", 32)
	v.SetDefault("vision.ocr_language", "eng")
	v.SetDefault("vision.templates.following", "following.png")
	v.SetDefault("vision.templates.follow", "follow.png")
	v.SetDefault("vision.templates.confirm", "confirm_unfollow.png")
	v.SetDefault("vision.templates.after_unfollow", "follow.png")
	v.SetDefault("vision.templates.after_follow", "following.png")
	v.SetDefault("vision.templates.cancel", "")
	v.SetDefault("vision.templates.block", []string{"action_blocked.png"})
	v.SetDefault("vision.block_phrases", []string{"Action Blocked", "Try Again Later"})

	// -- Timing --
	v.SetDefault("timing.min_action_delay", "10s")
	v.SetDefault("timing.max_action_delay", "30s")
	v.SetDefault("timing.pause_every_actions", 10)
	v.SetDefault("timing.pause_duration", "60s")
	v.SetDefault("timing.pause_jitter", "60s")
	v.SetDefault("timing.confirm_poll_interval", "500ms")
	v.SetDefault("timing.confirm_poll_attempts", 8)
	v.SetDefault("timing.confirm_threshold", 0.82)

	// -- Limits --
	v.SetDefault("limits.daily_cap", 150)
	v.SetDefault("limits.actions_per_session", 30)
	v.SetDefault("limits.max_scroll_retries", 5)
	v.SetDefault("limits.max_capture_retries", 3)
	v.SetDefault("limits.scroll_page_amount", 5)

	// -- Run --
	v.SetDefault("run.dry_run", false)
	v.SetDefault("run.action", "unfollow")

	// -- Journal --
	v.SetDefault("journal.driver", "sqlite")
	v.SetDefault("journal.path", "logs/journal.db")

	// -- Input --
	v.SetDefault("input.backend", "xdotool")
	v.SetDefault("input.xdotool_path", "xdotool")

	setHumanoidDefaults(v)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The Postgres journal URL usually carries a password; keep it out of files.
	_ = v.BindEnv("journal.database_url", "UNFOLLOWED_JOURNAL_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ExpandPaths resolves a leading "~" in every path setting.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.Vision.TemplatesDir, &c.Journal.Path, &c.Logger.LogFile, &c.Run.Input} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

var validate = validator.New()

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Vision.ConfirmThreshold <= c.Vision.MatchThreshold {
		return fmt.Errorf("vision.confirm_threshold (%.2f) must be stricter than vision.match_threshold (%.2f)",
			c.Vision.ConfirmThreshold, c.Vision.MatchThreshold)
	}
	if c.Timing.MinActionDelay > c.Timing.MaxActionDelay {
		return fmt.Errorf("timing.min_action_delay must not exceed timing.max_action_delay")
	}
	if !c.Screen.Bounds().Contains(schemas.Point{X: c.Screen.Region.X, Y: c.Screen.Region.Y}) ||
		c.Screen.Region.Right() > c.Screen.BaselineWidth || c.Screen.Region.Bottom() > c.Screen.BaselineHeight {
		return fmt.Errorf("screen.region %s lies outside the %dx%d baseline",
			c.Screen.Region, c.Screen.BaselineWidth, c.Screen.BaselineHeight)
	}
	if c.Vision.OCRRegion.OffsetY+c.Vision.OCRRegion.Height > c.Vision.RowHeight {
		return fmt.Errorf("vision.ocr_region does not fit inside vision.row_height")
	}
	if c.Journal.Driver == "postgres" && c.Journal.DatabaseURL == "" {
		return fmt.Errorf("journal.database_url is required for the postgres journal (set UNFOLLOWED_JOURNAL_URL)")
	}
	if c.Journal.Driver == "sqlite" && c.Journal.Path == "" {
		return fmt.Errorf("journal.path is required for the sqlite journal")
	}
	return nil
}
