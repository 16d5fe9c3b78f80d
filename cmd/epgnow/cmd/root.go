// Package cmd implements the CLI commands for epgnow.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jmylchreest/epgnow/internal/config"
	"github.com/jmylchreest/epgnow/internal/observability"
	"github.com/jmylchreest/epgnow/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// cfgFile holds the config file path from CLI flag.
	cfgFile string

	// cfg and logger are set by the root PersistentPreRunE.
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:     "epgnow",
	Short:   "Electronic programme guide now/next service",
	Version: version.Short(),
	Long: `epgnow downloads XMLTV programme guides, stores them, and answers
"what is on now" and "what is on next" for each channel.

Guides may be plain or gzip/deflate/xz/bzip2 compressed, given as a single
URL, a comma separated list, or a URL of a file listing guide URLs.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initConfig(rootCmd.PersistentFlags())
	}

	// These flags are not bound to viper; they override config and env
	// only when explicitly set.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml, /etc/epgnow/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// initConfig loads configuration and installs the default logger.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-format), only if explicitly provided
//  2. Environment variables (EPGNOW_LOGGING_LEVEL, ...)
//  3. Config file values
//  4. Built-in defaults
func initConfig(flags *pflag.FlagSet) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if flags.Changed("log-level") {
		loaded.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		loaded.Logging.Format, _ = flags.GetString("log-format")
	}
	loaded.Logging.Level = strings.ToLower(loaded.Logging.Level)
	loaded.Logging.Format = strings.ToLower(loaded.Logging.Format)
	if loaded.Logging.Level == "warning" {
		loaded.Logging.Level = "warn"
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("validating flags: %w", err)
	}

	cfg = loaded
	logger = observability.NewLoggerWithWriter(cfg.Logging, os.Stderr)
	observability.SetDefault(logger)
	return nil
}
