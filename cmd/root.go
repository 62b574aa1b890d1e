// Package cmd defines the coverd command line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jylhava/coverd/internal/conf"
	"github.com/jylhava/coverd/internal/logging"
)

// RootCommand creates and returns the root command.
func RootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "coverd",
		Short:        "Book cover resolution service",
		SilenceUsage: true,
	}

	var debug bool
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		settings, err := conf.Load()
		if err != nil {
			return err
		}
		if debug {
			settings.Debug = true
		}

		level := slog.LevelInfo
		if settings.Debug {
			level = slog.LevelDebug
		}
		logging.Init(level)
		return nil
	}

	rootCmd.AddCommand(serveCommand())
	return rootCmd
}
