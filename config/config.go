// Package config provides configuration loading and validation for trailcam.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidConfidence = errors.New("confidence must be within (0, 1]")
	ErrInvalidNMS        = errors.New("nms threshold must be within (0, 1]")
	ErrInvalidHistory    = errors.New("max history must be positive")
	ErrInvalidEviction   = errors.New("idle eviction frames must not be negative")
	ErrInvalidThickness  = errors.New("trail thickness must be positive")
	ErrInvalidColor      = errors.New("trail color must be three values within [0, 255]")
	ErrInvalidStep       = errors.New("progress step must be within [1, 100]")
	ErrInvalidDevice     = errors.New("device must be auto, cpu or cuda")
	ErrInvalidLogFormat  = errors.New("log format must be text or json")
	ErrInvalidLogLevel   = errors.New("unknown log level")
	ErrNoCodecs          = errors.New("at least one output codec or the ffmpeg fallback is required")
	ErrInvalidFilename   = errors.New("output filename must be a plain file name")
	ErrInvalidInputSize  = errors.New("model input size must be a positive multiple of 32")
)

// configName is the config file name without extension.
const configName = "trailcam"

// envPrefix is the environment variable prefix for trailcam settings.
const envPrefix = "TRAILCAM"

// Config holds all configuration for a run.
type Config struct {
	Input     InputConfig     `mapstructure:"input"`
	Model     ModelConfig     `mapstructure:"model"`
	Detection DetectionConfig `mapstructure:"detection"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	Overlay   OverlayConfig   `mapstructure:"overlay"`
	Output    OutputConfig    `mapstructure:"output"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	History   HistoryConfig   `mapstructure:"history"`
}

// InputConfig names the video to process.
type InputConfig struct {
	Video string `mapstructure:"video"`
}

// ModelConfig selects the detection model and where it runs.
type ModelConfig struct {
	Path string `mapstructure:"path"`
	// Size picks a catalog model (n, s, m, l, x) from Dir and overrides Path.
	Size      string `mapstructure:"size"`
	Dir       string `mapstructure:"dir"`
	Names     string `mapstructure:"names"`
	InputSize int    `mapstructure:"input_size"`
	Device    string `mapstructure:"device"`
}

// DetectionConfig holds the per-frame detector parameters.
type DetectionConfig struct {
	Confidence   float64 `mapstructure:"confidence"`
	NMSThreshold float64 `mapstructure:"nms_threshold"`
	Tracker      string  `mapstructure:"tracker"`
}

// TrackingConfig bounds the trajectory store.
type TrackingConfig struct {
	MaxHistory         int `mapstructure:"max_history"`
	IdleEvictionFrames int `mapstructure:"idle_eviction_frames"`
}

// OverlayConfig holds drawing settings. TrailColor is R, G, B.
type OverlayConfig struct {
	TrailColor     []int   `mapstructure:"trail_color"`
	TrailThickness int     `mapstructure:"trail_thickness"`
	BoxThickness   int     `mapstructure:"box_thickness"`
	FontScale      float64 `mapstructure:"font_scale"`
}

// OutputConfig controls where and how the annotated video is written.
type OutputConfig struct {
	ResultsDir     string   `mapstructure:"results_dir"`
	Filename       string   `mapstructure:"filename"`
	Codecs         []string `mapstructure:"codecs"`
	FFmpegFallback bool     `mapstructure:"ffmpeg_fallback"`
	FFmpegBinary   string   `mapstructure:"ffmpeg_binary"`
}

// ProgressConfig controls progress logging.
type ProgressConfig struct {
	StepPercent int `mapstructure:"step_percent"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// HistoryConfig locates the run ledger. An empty Database means
// <results_dir>/runs.db; "off" disables the ledger.
type HistoryConfig struct {
	Database string `mapstructure:"database"`
}

// LedgerPath resolves the run ledger location, or "" when disabled.
func (c *Config) LedgerPath() string {
	switch c.History.Database {
	case "off", "none":
		return ""
	case "":
		return filepath.Join(c.Output.ResultsDir, "runs.db")
	default:
		return c.History.Database
	}
}

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise trailcam.yaml is searched in CWD and $HOME/.config/trailcam.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg, err := NewViper(configPath)
	if err != nil {
		return nil, err
	}
	return Decode(viperCfg)
}

// Decode unmarshals and validates an already populated viper instance. The CLI
// binds its flags to the instance before calling it.
func Decode(viperCfg *viper.Viper) (*Config, error) {
	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

// NewViper returns a viper instance with defaults, env binding and the config
// file loaded.
func NewViper(configPath string) (*viper.Viper, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	viperCfg.SetConfigType("yaml")
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(filepath.Join(home, ".config", "trailcam"))
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	return viperCfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Detection.Confidence <= 0 || c.Detection.Confidence > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidConfidence, c.Detection.Confidence)
	}

	if c.Detection.NMSThreshold <= 0 || c.Detection.NMSThreshold > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidNMS, c.Detection.NMSThreshold)
	}

	if c.Model.InputSize <= 0 || c.Model.InputSize%32 != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidInputSize, c.Model.InputSize)
	}

	switch strings.ToLower(c.Model.Device) {
	case "", "auto", "cpu", "cuda":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDevice, c.Model.Device)
	}

	if c.Tracking.MaxHistory <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidHistory, c.Tracking.MaxHistory)
	}

	if c.Tracking.IdleEvictionFrames < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidEviction, c.Tracking.IdleEvictionFrames)
	}

	if c.Overlay.TrailThickness <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidThickness, c.Overlay.TrailThickness)
	}

	if len(c.Overlay.TrailColor) != 3 {
		return fmt.Errorf("%w: %v", ErrInvalidColor, c.Overlay.TrailColor)
	}
	for _, v := range c.Overlay.TrailColor {
		if v < 0 || v > 255 {
			return fmt.Errorf("%w: %v", ErrInvalidColor, c.Overlay.TrailColor)
		}
	}

	if c.Progress.StepPercent < 1 || c.Progress.StepPercent > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidStep, c.Progress.StepPercent)
	}

	if len(c.Output.Codecs) == 0 && !c.Output.FFmpegFallback {
		return ErrNoCodecs
	}

	if c.Output.Filename == "" || strings.ContainsAny(c.Output.Filename, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, c.Output.Filename)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	return nil
}
