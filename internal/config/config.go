package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jzx17/procsim/internal/fault"
	"github.com/jzx17/procsim/internal/logger"
	"github.com/jzx17/procsim/pkg/simulation"
	"github.com/jzx17/procsim/pkg/types"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Load reads the configuration file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext (".toml", ".yaml", ".yml"),
// then applies defaults and expands environment variables
func Parse(data []byte, ext string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	expandEnvVars(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(c *Config) {
	defaults := simulation.DefaultParams()
	if c.Simulation.Workers == 0 {
		c.Simulation.Workers = defaults.Workers
	}
	if c.Simulation.Tasks == 0 {
		c.Simulation.Tasks = defaults.Tasks
	}
	if c.Simulation.MaxDuration == 0 {
		c.Simulation.MaxDuration = defaults.MaxDuration
	}
	if c.Simulation.TimeUnit == "" {
		c.Simulation.TimeUnit = defaults.TimeUnit.String()
	}
	if c.Simulation.IdleTimeout == "" {
		c.Simulation.IdleTimeout = defaults.IdleTimeout.String()
	}
	if c.Simulation.ShutdownMode == "" {
		c.Simulation.ShutdownMode = types.ShutdownOnIdleTimeout.String()
	}
	if c.Simulation.FaultStrategy == "" {
		c.Simulation.FaultStrategy = fault.ContinueOnErrorStrategy.String()
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "procsim"
	}

	if c.Soak.Schedule == "" {
		c.Soak.Schedule = "@every 30s"
	}
}

// Validate checks the configuration and reports every problem found
func (c *Config) Validate() []error {
	var errs []error

	if c.Simulation.Workers < 1 {
		errs = append(errs, fmt.Errorf("simulation.workers must be at least 1, got %d", c.Simulation.Workers))
	}
	if c.Simulation.Tasks < 0 {
		errs = append(errs, fmt.Errorf("simulation.tasks must not be negative, got %d", c.Simulation.Tasks))
	}
	if c.Simulation.MaxDuration < 1 {
		errs = append(errs, fmt.Errorf("simulation.max_duration must be at least 1, got %d", c.Simulation.MaxDuration))
	}
	if err := validateDuration(c.Simulation.TimeUnit, "simulation.time_unit"); err != nil {
		errs = append(errs, err)
	}
	if err := validateDuration(c.Simulation.IdleTimeout, "simulation.idle_timeout"); err != nil {
		errs = append(errs, err)
	}
	if _, err := types.ParseShutdownMode(c.Simulation.ShutdownMode); err != nil {
		errs = append(errs, fmt.Errorf("simulation.shutdown_mode: %w", err))
	}
	if _, err := fault.ParseStrategy(c.Simulation.FaultStrategy); err != nil {
		errs = append(errs, fmt.Errorf("simulation.fault_strategy: %w", err))
	}

	if _, ok := logger.ParseLevel(c.Logging.Level); !ok {
		errs = append(errs, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid logging.format: %s (expected: text, json)", c.Logging.Format))
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, fmt.Errorf("metrics.addr is required when metrics are enabled"))
	}

	if _, err := ParseSchedule(c.Soak.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("invalid soak.schedule %q: %w", c.Soak.Schedule, err))
	}
	if c.Soak.Runs < 0 {
		errs = append(errs, fmt.Errorf("soak.runs must not be negative, got %d", c.Soak.Runs))
	}

	return errs
}

// Params converts the simulation section into run parameters. The config
// should have passed Validate.
func (c *Config) Params() (simulation.Params, error) {
	unit, err := time.ParseDuration(c.Simulation.TimeUnit)
	if err != nil {
		return simulation.Params{}, fmt.Errorf("simulation.time_unit: %w", err)
	}
	idle, err := time.ParseDuration(c.Simulation.IdleTimeout)
	if err != nil {
		return simulation.Params{}, fmt.Errorf("simulation.idle_timeout: %w", err)
	}
	mode, err := types.ParseShutdownMode(c.Simulation.ShutdownMode)
	if err != nil {
		return simulation.Params{}, err
	}
	strategy, err := fault.ParseStrategy(c.Simulation.FaultStrategy)
	if err != nil {
		return simulation.Params{}, err
	}

	return simulation.Params{
		Workers:       c.Simulation.Workers,
		Tasks:         c.Simulation.Tasks,
		MaxDuration:   c.Simulation.MaxDuration,
		TimeUnit:      unit,
		IdleTimeout:   idle,
		ShutdownMode:  mode,
		FaultStrategy: strategy,
		Seed:          c.Simulation.Seed,
	}, nil
}

// LoggerConfig converts the logging section
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}

// ParseSchedule parses a soak schedule. A leading seconds field is optional.
func ParseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return parser.Parse(spec)
}

func validateDuration(value, fieldName string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", fieldName, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", fieldName, value)
	}
	return nil
}

// expandEnvVars expands ${VAR} and ${VAR:default} in string fields
func expandEnvVars(c *Config) {
	for _, field := range []*string{
		&c.Simulation.TimeUnit,
		&c.Simulation.IdleTimeout,
		&c.Simulation.ShutdownMode,
		&c.Simulation.FaultStrategy,
		&c.Logging.Level,
		&c.Logging.Format,
		&c.Logging.Output,
		&c.Metrics.Addr,
		&c.Metrics.Namespace,
		&c.Soak.Schedule,
	} {
		*field = expandEnv(*field)
	}
}

// expandEnv expands environment references; ${VAR:default} falls back to
// default when VAR is unset or empty
func expandEnv(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return os.Expand(s, func(key string) string {
		name, fallback, hasDefault := strings.Cut(key, ":")
		if val := os.Getenv(name); val != "" {
			return val
		}
		if hasDefault {
			return fallback
		}
		return ""
	})
}
