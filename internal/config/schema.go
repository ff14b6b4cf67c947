// Package config loads procsim configuration files.
//
// TOML (*.toml) and YAML (*.yaml, *.yml) are supported, chosen by file
// extension. String values may reference environment variables with ${VAR}
// or ${VAR:default}.
//
// Configuration structure:
//   - [simulation]: pool size, task generation, timing and policies
//   - [logging]: level, format and output
//   - [metrics]: Prometheus endpoint
//   - [soak]: cron schedule for repeated runs
package config

// Config represents the procsim configuration
type Config struct {
	Simulation SimulationConfig `toml:"simulation" yaml:"simulation"`
	Logging    LoggingConfig    `toml:"logging" yaml:"logging"`
	Metrics    MetricsConfig    `toml:"metrics" yaml:"metrics"`
	Soak       SoakConfig       `toml:"soak" yaml:"soak"`
}

// SimulationConfig describes one simulation run
type SimulationConfig struct {
	Workers     int `toml:"workers" yaml:"workers"`
	Tasks       int `toml:"tasks" yaml:"tasks"`
	MaxDuration int `toml:"max_duration" yaml:"max_duration"`

	// TimeUnit and IdleTimeout are Go duration strings such as "1s"
	TimeUnit    string `toml:"time_unit" yaml:"time_unit"`
	IdleTimeout string `toml:"idle_timeout" yaml:"idle_timeout"`

	// ShutdownMode is "idle-timeout" or "close"
	ShutdownMode string `toml:"shutdown_mode" yaml:"shutdown_mode"`

	// FaultStrategy is "continue" or "fail-fast"
	FaultStrategy string `toml:"fault_strategy" yaml:"fault_strategy"`

	// Seed fixes task durations; zero is random
	Seed uint64 `toml:"seed" yaml:"seed"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	Output string `toml:"output" yaml:"output"`
}

// MetricsConfig configures the Prometheus exporter
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled" yaml:"enabled"`
	Addr      string `toml:"addr" yaml:"addr"`
	Namespace string `toml:"namespace" yaml:"namespace"`
}

// SoakConfig configures repeated runs
type SoakConfig struct {
	// Schedule is a cron spec, with optional seconds field or @every form
	Schedule string `toml:"schedule" yaml:"schedule"`

	// Runs stops the soak after this many runs; zero runs until interrupted
	Runs int `toml:"runs" yaml:"runs"`
}
