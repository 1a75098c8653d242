package main

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema <schema.yaml>...",
	Short: "Check schema files for structural errors",
	Long: `Build and resolve schema files without validating any data.

Every structural problem is reported at once: unknown type tokens,
bounds whose units do not match the property's dimension, validators
naming undeclared properties, and so on.

Examples:
  yasl schema schema.yaml
  yasl schema core.yaml hr.yaml
  yasl schema schema.yaml --debug`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSchema,
}

var schemaDebug bool

func init() {
	rootCmd.AddCommand(schemaCmd)

	schemaCmd.Flags().BoolVar(&schemaDebug, "debug", false, "dump the resolved schema model")
}

func runSchema(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg := newRegistry(cfg)

	out := cmd.OutOrStdout()
	failed := false
	for _, path := range args {
		_, model, err := loadGraph(path, reg)
		if err != nil {
			fmt.Fprintf(out, "%s %s\n%v\n", crossMark, path, err)
			failed = true
			continue
		}

		if schemaDebug {
			spew.Fdump(out, model)
		}

		total := 0
		for _, ns := range model.Namespaces {
			fmt.Fprintf(out, "  %s namespace %s: %d types, %d enums\n",
				checkMark, ns.Name, len(ns.Types), len(ns.Enums))
			total += len(ns.Types)
		}
		fmt.Fprintf(out, "%s %s (%d types)\n", checkMark, path, total)
	}

	if failed {
		return fmt.Errorf("schema check failed")
	}
	return nil
}
