package main

import (
	"github.com/spf13/cobra"

	"github.com/ashita-ai/beacon"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and MCP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(cmd.OutOrStdout())
			app, err := beacon.New(
				beacon.WithVersion(version),
				beacon.WithLogger(logger),
				beacon.WithPort(port),
			)
			if err != nil {
				logger.Error("fatal error", "error", err)
				return err
			}
			return app.Run(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides BEACON_PORT)")
	return cmd
}
