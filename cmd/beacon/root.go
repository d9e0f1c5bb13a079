package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "beacon",
		Short: "Principal-aware KPI situation detection",
		Long: `beacon resolves business principals, selects the KPIs they own, and
classifies deviations into situations that move through a human-in-the-loop
lifecycle. Configuration comes from BEACON_* environment variables and an
optional .env file.`,
		SilenceUsage: true,
		Version:      version,
	}
	root.AddCommand(
		newServeCmd(),
		newDetectCmd(),
		newResolveCmd(),
		newHashKeyCmd(),
		newGenKeyCmd(),
	)
	return root
}

// newLogger builds the JSON logger every command uses. The level comes from
// BEACON_LOG_LEVEL.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("BEACON_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
