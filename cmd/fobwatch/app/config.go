package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rf-lab/fobwatch/internal/detect"
	"github.com/rf-lab/fobwatch/internal/sdr/rtl"
)

const (
	ThresholdFixed    = "fixed"
	ThresholdAdaptive = "adaptive"
)

// Defaults follow the 315 MHz key-fob profile: 200 ms capture blocks,
// 5 ms envelope resolution, threshold at 8x the median noise floor.
const (
	defaultFrequency   = 315_000_000
	defaultSampleRate  = 1_024_000
	defaultBlockSize   = 204_800 // 200 ms at 1.024 MS/s
	defaultSubWindow   = 5 * time.Millisecond
	defaultFactor      = 8.0
	defaultMarginDB    = 9.0
	defaultWindow      = 10 * time.Second
	defaultCalibration = 3 * time.Second
	defaultHoldOff     = 30 * time.Millisecond
	defaultMinDuration = 20 * time.Millisecond
	defaultDebounce    = 200 * time.Millisecond
	defaultBatchSize   = 50
)

// Duration is a yaml-parseable time.Duration ("200ms", "3s", "2m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d *Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(*d).String(), nil
}

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Capture   *rtl.Config     `yaml:"capture"`
	Power     PowerConfig     `yaml:"power"`
	Detection DetectionConfig `yaml:"detection"`
	Storage   StorageConfig   `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

func (s *Settings) Level() (slog.Level, error) {
	if s.LogLevel == "" {
		return slog.LevelInfo, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s.LogLevel, err)
	}
	return level, nil
}

// PowerConfig selects the power scale and envelope resolution.
type PowerConfig struct {
	Scale     string   `yaml:"scale"`     // "linear" or "db"
	SubWindow Duration `yaml:"subWindow"` // envelope sample length
}

// DetectionConfig carries the burst state machine and reporting parameters.
type DetectionConfig struct {
	Threshold   ThresholdConfig `yaml:"threshold"`
	HoldOff     Duration        `yaml:"holdOff"`
	MinDuration Duration        `yaml:"minDuration"`
	Debounce    Duration        `yaml:"debounce"`
}

// ThresholdConfig selects the threshold policy.
//
// mode: fixed    -- value is the cutoff in the configured power scale.
// mode: adaptive -- the threshold tracks a rolling median noise floor over
// window, armed after calibration worth of idle samples; factor applies in
// linear scale, marginDb in dB scale.
type ThresholdConfig struct {
	Mode        string   `yaml:"mode"`
	Value       float64  `yaml:"value"`
	Factor      float64  `yaml:"factor"`
	MarginDB    float64  `yaml:"marginDb"`
	Window      Duration `yaml:"window"`
	Calibration Duration `yaml:"calibration"`
}

// StorageConfig represents event log storage settings
type StorageConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DataDirectory string `yaml:"dataDirectory"`
	PowerTrace    bool   `yaml:"powerTrace"`
	MaxBatchSize  int    `yaml:"maxBatchSize"`
}

// LoadConfig reads, defaults and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(p, &config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	config.applyDefaults()
	if err = config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Capture == nil {
		c.Capture = &rtl.Config{Gain: rtl.Gain{Auto: true}}
	}
	if c.Capture.Frequency == 0 {
		c.Capture.Frequency = defaultFrequency
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = defaultSampleRate
	}
	if c.Capture.BlockSize == 0 {
		c.Capture.BlockSize = defaultBlockSize
	}

	if c.Power.Scale == "" {
		c.Power.Scale = string(detect.ScaleLinear)
	}
	if c.Power.SubWindow == 0 {
		c.Power.SubWindow = Duration(defaultSubWindow)
	}

	t := &c.Detection.Threshold
	if t.Mode == "" {
		t.Mode = ThresholdAdaptive
	}
	if t.Factor == 0 {
		t.Factor = defaultFactor
	}
	if t.MarginDB == 0 {
		t.MarginDB = defaultMarginDB
	}
	if t.Window == 0 {
		t.Window = Duration(defaultWindow)
	}
	if t.Calibration == 0 {
		t.Calibration = Duration(defaultCalibration)
	}

	if c.Detection.HoldOff == 0 {
		c.Detection.HoldOff = Duration(defaultHoldOff)
	}
	if c.Detection.MinDuration == 0 {
		c.Detection.MinDuration = Duration(defaultMinDuration)
	}
	if c.Detection.Debounce == 0 {
		c.Detection.Debounce = Duration(defaultDebounce)
	}

	if c.Storage.MaxBatchSize == 0 {
		c.Storage.MaxBatchSize = defaultBatchSize
	}
}

func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return err
	}

	scale := detect.Scale(c.Power.Scale)
	if scale != detect.ScaleLinear && scale != detect.ScaleDB {
		return fmt.Errorf("invalid power scale: %q", c.Power.Scale)
	}
	if c.Power.SubWindow < 0 {
		return fmt.Errorf("power sub-window must not be negative: %s", time.Duration(c.Power.SubWindow))
	}

	t := &c.Detection.Threshold
	switch t.Mode {
	case ThresholdFixed:
		// any value is a legal cutoff in either scale

	case ThresholdAdaptive:
		if t.Calibration > t.Window {
			return fmt.Errorf("threshold calibration (%s) must not exceed window (%s)",
				time.Duration(t.Calibration), time.Duration(t.Window))
		}

	default:
		return fmt.Errorf("invalid threshold mode: %q", t.Mode)
	}

	if c.Detection.HoldOff < 0 || c.Detection.MinDuration < 0 || c.Detection.Debounce < 0 {
		return fmt.Errorf("detection durations must not be negative")
	}

	if c.Storage.Enabled && c.Storage.MaxBatchSize <= 0 {
		return fmt.Errorf("storage batch size must be positive: %d", c.Storage.MaxBatchSize)
	}

	return nil
}
