package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/beacon"
)

type detectFlags struct {
	principal  string
	processes  []string
	timeframe  string
	comparison string
	registry   string
	fixtures   string
	duckdb     string
}

func newDetectCmd() *cobra.Command {
	var f detectFlags
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run one detection cycle and print the situations as JSON",
		Long: `detect resolves the principal, measures the selected KPIs from the
fixture file and/or DuckDB database, classifies them, and prints the result.
Situations are kept in memory unless BEACON_DATABASE_URL or
BEACON_SQLITE_PATH is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := beacon.New(
				beacon.WithVersion(version),
				beacon.WithLogger(newLogger(cmd.ErrOrStderr())),
				beacon.WithRegistryPath(f.registry),
				beacon.WithMeasurementFixtures(f.fixtures),
				beacon.WithDuckDBPath(f.duckdb),
			)
			if err != nil {
				return err
			}
			defer func() { _ = app.Shutdown(cmd.Context()) }()

			res, err := app.Detect(cmd.Context(), beacon.DetectRequest{
				PrincipalID:       f.principal,
				BusinessProcesses: f.processes,
				Timeframe:         f.timeframe,
				ComparisonType:    f.comparison,
			})
			if err != nil {
				return fmt.Errorf("detect: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.principal, "principal", "p", "", "principal id, role or title (default principal when empty)")
	fl.StringSliceVar(&f.processes, "process", nil, "business process filter, repeatable")
	fl.StringVar(&f.timeframe, "timeframe", "current_quarter", "timeframe")
	fl.StringVar(&f.comparison, "comparison", "year_over_year", "comparison type")
	fl.StringVar(&f.registry, "registry", "", "registry YAML (overrides BEACON_REGISTRY_PATH)")
	fl.StringVar(&f.fixtures, "fixtures", "", "measurement fixtures YAML")
	fl.StringVar(&f.duckdb, "duckdb", "", "DuckDB database for data-product queries")
	return cmd
}

func newResolveCmd() *cobra.Command {
	var registryPath string
	cmd := &cobra.Command{
		Use:   "resolve <identifier>",
		Short: "Show which principal an identifier resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := beacon.New(
				beacon.WithVersion(version),
				beacon.WithLogger(newLogger(cmd.ErrOrStderr())),
				beacon.WithRegistryPath(registryPath),
			)
			if err != nil {
				return err
			}
			defer func() { _ = app.Shutdown(cmd.Context()) }()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(app.Resolve(args[0]))
		},
	}
	cmd.Flags().StringVar(&registryPath, "registry", "", "registry YAML (overrides BEACON_REGISTRY_PATH)")
	return cmd
}
