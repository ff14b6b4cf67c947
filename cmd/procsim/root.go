package main

import (
	"errors"
	"fmt"

	"github.com/jzx17/procsim/internal/config"
	"github.com/jzx17/procsim/internal/logger"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// newRootCmd builds the command tree
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "procsim",
		Short: "procsim - worker pool simulation",
		Long: `procsim drains a queue of timed tasks with a fixed pool of workers.
Workers shut down after an idle timeout on an empty queue; the run completes
once every task is acknowledged and every worker has exited.`,
		Version:      Version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a TOML or YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newSoakCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// load reads the config file, or the defaults when none is given, and
// applies global flag overrides
func (o *rootOptions) load() (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// validated checks cfg and folds every problem into one error
func validated(cfg *config.Config) error {
	errs := cfg.Validate()
	if len(errs) == 0 {
		return nil
	}
	msg := fmt.Sprintf("%d config errors:", len(errs))
	for _, err := range errs {
		msg += "\n  - " + err.Error()
	}
	return errors.New(msg)
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}
