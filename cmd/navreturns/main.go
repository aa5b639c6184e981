// Command navreturns runs return batches and one-off computations from the shell.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/navreturns/internal/config"
	"github.com/aristath/navreturns/internal/di"
	"github.com/aristath/navreturns/pkg/logger"
)

var (
	logLevel string
	pretty   bool
)

// rootCmd is the base command for the navreturns CLI
var rootCmd = &cobra.Command{
	Use:   "navreturns",
	Short: "Trailing return profiles for fund NAV series",
	Long: `navreturns computes trailing 1M..10Y return profiles for mutual funds and
ETFs from their NAV histories, using either periodic monthly contributions
(XIRR) or a single lump sum (absolute / CAGR).

Configuration is read from the environment and an optional .env file; flags
override it for a single invocation.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error), overrides LOG_LEVEL")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "Human-readable log output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// newLogger builds the CLI logger. Logs go to stderr so stdout stays clean for output.
func newLogger(cfg *config.Config) zerolog.Logger {
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	return logger.New(logger.Config{
		Level:  level,
		Pretty: pretty,
		Output: os.Stderr,
	})
}

// wire loads the container for cfg. The caller closes it.
func wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*di.Container, *di.JobInstances, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return di.Wire(ctx, cfg, log)
}
