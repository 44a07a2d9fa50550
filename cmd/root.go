package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trolltrack/trolltrack/cmd/backup"
	"github.com/trolltrack/trolltrack/cmd/catch"
	"github.com/trolltrack/trolltrack/cmd/dashboard"
	"github.com/trolltrack/trolltrack/cmd/lures"
	"github.com/trolltrack/trolltrack/cmd/program"
	"github.com/trolltrack/trolltrack/cmd/serve"
	"github.com/trolltrack/trolltrack/cmd/settings"
	"github.com/trolltrack/trolltrack/cmd/weather"
	"github.com/trolltrack/trolltrack/internal/app"
	"github.com/trolltrack/trolltrack/internal/buildinfo"
)

// RootCommand creates and returns the root command. Subcommands build the
// shared services through loader; PersistentPostRun closes them.
func RootCommand(loader *app.Loader) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "trolltrack",
		Short:         "TrollTrack fishing log, weather and conditions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			loader.Close()
		},
	}

	setupFlags(rootCmd, loader)

	rootCmd.AddCommand(
		weather.Command(loader),
		catch.Command(loader),
		lures.Command(loader),
		program.Command(loader),
		settings.Command(loader),
		backup.Command(loader),
		serve.Command(loader),
		dashboard.Command(loader),
		versionCommand(),
	)
	return rootCmd
}

func setupFlags(rootCmd *cobra.Command, loader *app.Loader) {
	rootCmd.PersistentFlags().StringVarP(&loader.ConfigPath, "config", "c", os.Getenv("TROLLTRACK_CONFIG"), "Path to config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&loader.Debug, "debug", "d", false, "Enable debug output")
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.Current().String())
		},
	}
}
