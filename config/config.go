// Package config defines the robot's process configuration and how it is read from disk.
package config

import (
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/mechctl/actuator"
)

// DefaultPeriod is the control loop period used when none is configured.
const DefaultPeriod = 20 * time.Millisecond

// Config is the process configuration. The execution mode is fixed for the life of the process.
type Config struct {
	ConfigFilePath string `json:"-"`

	Mode       string           `json:"mode"`
	Period     string           `json:"period,omitempty"`
	LogLevel   string           `json:"log_level,omitempty"`
	LogFile    *LogFileConfig   `json:"log_file,omitempty"`
	Replay     *ReplayConfig    `json:"replay,omitempty"`
	RecordPath string           `json:"record,omitempty"`
	Tuning     *TuningConfig    `json:"tuning,omitempty"`
	Autonomous string           `json:"autonomous,omitempty"`
	Telemetry  *TelemetryConfig `json:"telemetry,omitempty"`

	mode   actuator.Mode
	period time.Duration
}

// ReplayConfig points replay mode at a recorded log.
type ReplayConfig struct {
	Log string `json:"log"`
}

// Validate ensures all parts of the config are valid.
func (c *ReplayConfig) Validate(path string) error {
	if c.Log == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "log")
	}
	return nil
}

// Rotation defaults for LogFileConfig.
const (
	DefaultLogMaxSizeMB  = 64
	DefaultLogMaxBackups = 3
)

// LogFileConfig mirrors logs into a size rotated file.
type LogFileConfig struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
}

// Validate ensures all parts of the config are valid and fills rotation defaults.
func (c *LogFileConfig) Validate(path string) error {
	if c.Path == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "path")
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 {
		return utils.NewConfigValidationError(path, errors.New("rotation limits must not be negative"))
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = DefaultLogMaxBackups
	}
	return nil
}

// TuningConfig holds startup values for tunable numbers and an optional file watched for updates.
type TuningConfig struct {
	File    string                 `json:"file,omitempty"`
	Initial map[string]interface{} `json:"values,omitempty"`

	values map[string]float64
}

// Validate decodes the startup values. Strings holding numbers are accepted so values can come
// from environment variables.
func (c *TuningConfig) Validate(path string) error {
	values := map[string]float64{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &values,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(c.Initial); err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(err, "values must map names to numbers"))
	}
	c.values = values
	return nil
}

// Values returns the decoded startup values.
func (c *TuningConfig) Values() map[string]float64 {
	return c.values
}

// TelemetryConfig controls the periodic telemetry dump and loop statistics.
type TelemetryConfig struct {
	Interval string `json:"interval,omitempty"`

	interval time.Duration
}

// Validate parses the dump interval.
func (c *TelemetryConfig) Validate(path string) error {
	if c.Interval == "" {
		return nil
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(err, "error validating interval"))
	}
	if d < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("interval must not be negative, got %v", d))
	}
	c.interval = d
	return nil
}

// IntervalOrDefault is the configured interval, or def when unset.
func (c *TelemetryConfig) IntervalOrDefault(def time.Duration) time.Duration {
	if c == nil || c.interval == 0 {
		return def
	}
	return c.interval
}

// Ensure validates the whole config and resolves its derived fields.
func (c *Config) Ensure() error {
	if c.Mode == "" {
		return utils.NewConfigValidationFieldRequiredError("", "mode")
	}
	mode, err := actuator.ParseMode(c.Mode)
	if err != nil {
		return utils.NewConfigValidationError("mode", err)
	}
	c.mode = mode

	c.period = DefaultPeriod
	if c.Period != "" {
		if c.period, err = time.ParseDuration(c.Period); err != nil {
			return utils.NewConfigValidationError("period", err)
		}
		if c.period <= 0 {
			return utils.NewConfigValidationError("period", errors.Errorf("must be positive, got %v", c.period))
		}
	}

	if mode == actuator.ModeReplay {
		if c.Replay == nil {
			return utils.NewConfigValidationFieldRequiredError("", "replay")
		}
		if err := c.Replay.Validate("replay"); err != nil {
			return err
		}
	}
	if c.Tuning != nil {
		if err := c.Tuning.Validate("tuning"); err != nil {
			return err
		}
	}
	if c.LogFile != nil {
		if err := c.LogFile.Validate("log_file"); err != nil {
			return err
		}
	}
	if c.Telemetry != nil {
		if err := c.Telemetry.Validate("telemetry"); err != nil {
			return err
		}
	}
	if c.LogLevel != "" {
		switch c.LogLevel {
		case "debug", "info", "warn", "error":
		default:
			return utils.NewConfigValidationError("log_level", errors.Errorf("unknown level %q", c.LogLevel))
		}
	}
	return nil
}

// ExecutionMode is the parsed mode. Only meaningful after Ensure.
func (c *Config) ExecutionMode() actuator.Mode {
	return c.mode
}

// LoopPeriod is the parsed period. Only meaningful after Ensure.
func (c *Config) LoopPeriod() time.Duration {
	return c.period
}

// TuningValues returns the startup tunable values, if any.
func (c *Config) TuningValues() map[string]float64 {
	if c.Tuning == nil {
		return nil
	}
	return c.Tuning.Values()
}
