package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/yasl/config"
	"github.com/artpar/yasl/core/units"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "yasl",
	Short: "Unit-aware YAML schema validation",
	Long: `YASL validates YAML data documents against YAML schemas.

Schemas describe typed records with physical quantities (1 GiB, 30 s,
5 kg), presence rules, bounds, uniqueness, and cross-record references.
Every violation in a document is reported with its line and column.

Quick start:
  yasl schema schema.yaml              # Check a schema
  yasl check schema.yaml data.yaml     # Validate data against it

Continuous:
  yasl watch schema.yaml data.yaml     # Re-validate on file changes
  yasl serve                           # Validation as an HTTP service`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "yasl.yaml", "config file path")
}

func loadConfig() (*config.Config, error) {
	return config.LoadWithFallback(cfgFile)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func newRegistry(cfg *config.Config) *units.Registry {
	if cfg.Units.Convention == "binary" {
		return units.NewRegistry(units.Binary)
	}
	return units.NewRegistry(units.Decimal)
}
