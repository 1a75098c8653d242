package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/artpar/yasl/core/validate"
)

var watchCmd = &cobra.Command{
	Use:   "watch <schema.yaml> <data.yaml>",
	Short: "Re-validate whenever the schema or data file changes",
	Long: `Watch a schema file and a data file, re-running validation on
every change. The schema is rebuilt when it changes, so schema errors
show up as soon as they are saved.

Examples:
  yasl watch schema.yaml data.yaml
  yasl watch schema.yaml data.yaml --skip-reachability`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&checkSkipReachability, "skip-reachability", false, "skip url_reachable probes")
	watchCmd.Flags().IntVar(&checkWorkers, "workers", 0, "validation worker count (0 = GOMAXPROCS)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	schemaPath, dataPath := args[0], args[1]
	schemaAbs, err := filepath.Abs(schemaPath)
	if err != nil {
		return err
	}
	dataAbs, err := filepath.Abs(dataPath)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directories (more reliable for editors that do atomic saves)
	for _, dir := range watchDirs(schemaAbs, dataAbs) {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch directory: %w", err)
		}
	}

	reg := newRegistry(cfg)
	run := func() {
		graph, _, err := loadGraph(schemaPath, reg)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n%v\n", crossMark, schemaPath, err)
			return
		}
		data, err := os.ReadFile(dataPath)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n%v\n", crossMark, dataPath, err)
			return
		}
		engine := validate.New(graph, engineOptions(cfg, reg))
		rpt, err := engine.ValidateData(cmd.Context(), data)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n%v\n", crossMark, dataPath, err)
			return
		}
		printReport(cmd, dataPath, &rpt)
	}

	run()
	logger.Info().Str("schema", schemaPath).Str("data", dataPath).Msg("watching for changes")

	// Editors fire bursts of events on save; coalesce them.
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != schemaAbs && event.Name != dataAbs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, func() {
				fmt.Fprintln(cmd.OutOrStdout())
				run()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Msg("file watcher error")

		case <-cmd.Context().Done():
			return nil
		}
	}
}

func watchDirs(paths ...string) []string {
	seen := map[string]bool{}
	var dirs []string
	for _, p := range paths {
		dir := filepath.Dir(p)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}
