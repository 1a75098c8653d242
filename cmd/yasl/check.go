package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/yasl/adapters/fsys"
	"github.com/artpar/yasl/adapters/urlcheck"
	"github.com/artpar/yasl/config"
	"github.com/artpar/yasl/core/report"
	"github.com/artpar/yasl/core/units"
	"github.com/artpar/yasl/core/validate"
	"github.com/artpar/yasl/ports"
)

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)

var checkCmd = &cobra.Command{
	Use:   "check <schema.yaml> <data.yaml>...",
	Short: "Validate data documents against a schema",
	Long: `Validate one or more YAML data documents against a schema.

Every violation in a document is reported, in document order, with its
line and column. Warnings (preferred properties) do not fail the run
unless --warnings-as-errors is set.

Examples:
  yasl check schema.yaml data.yaml
  yasl check schema.yaml staging.yaml production.yaml
  yasl check schema.yaml data.yaml --skip-reachability`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCheck,
}

var (
	checkSkipReachability bool
	checkWarningsAsErrors bool
	checkWorkers          int
)

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVar(&checkSkipReachability, "skip-reachability", false, "skip url_reachable probes")
	checkCmd.Flags().BoolVar(&checkWarningsAsErrors, "warnings-as-errors", false, "treat warnings as failures")
	checkCmd.Flags().IntVar(&checkWorkers, "workers", 0, "validation worker count (0 = GOMAXPROCS)")
}

func engineOptions(cfg *config.Config, reg *units.Registry) validate.Options {
	var reach ports.Reachability
	if cfg.Reachability.IsEnabled() {
		reach = urlcheck.New(cfg.Reachability.Timeout)
	}

	workers := cfg.Validate.Workers
	if checkWorkers > 0 {
		workers = checkWorkers
	}

	return validate.Options{
		Units:               reg,
		FS:                  fsys.OS{},
		Reachability:        reach,
		ReachabilityTimeout: cfg.Reachability.Timeout,
		SkipReachability:    checkSkipReachability,
		Workers:             workers,
		Logger:              newLogger(cfg),
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg := newRegistry(cfg)
	graph, _, err := loadGraph(args[0], reg)
	if err != nil {
		return err
	}

	engine := validate.New(graph, engineOptions(cfg, reg))

	failed := false
	for _, dataPath := range args[1:] {
		data, err := os.ReadFile(dataPath)
		if err != nil {
			return fmt.Errorf("read data: %w", err)
		}

		rpt, err := engine.ValidateData(cmd.Context(), data)
		if err != nil {
			return fmt.Errorf("%s: %w", dataPath, err)
		}

		printReport(cmd, dataPath, &rpt)
		if rpt.Failed() || (checkWarningsAsErrors && rpt.Warnings() > 0) {
			failed = true
		}
	}

	if failed {
		return fmt.Errorf("validation failed")
	}
	return nil
}

func printReport(cmd *cobra.Command, path string, rpt *report.Report) {
	out := cmd.OutOrStdout()
	if rpt.Len() == 0 {
		fmt.Fprintf(out, "  %s %s\n", checkMark, path)
		return
	}
	fmt.Fprintf(out, "  %s %s\n", crossMark, path)
	fmt.Fprint(out, rpt.Render())
}
