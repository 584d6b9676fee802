package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mujarchiv/rozhlasd/pkg/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rozhlasd",
	Short: "Czech Radio catalog ingest and download daemon",
	Long: `rozhlasd - long-running ingest and download orchestrator for the
Czech Radio catalog (mujrozhlas.cz / rozhlas.cz).

The daemon crawls registered program pages, fuses four discovery
sources into one deduplicated episode list, reconciles it into a
SQLite catalog and drains the resulting download queue through
yt-dlp or a link-grabber hand-off. Episodes that go off-air are
watched and revived when they return.

Every configuration key can be set in config/settings.yaml or as a
ROZHLASD_<KEY> environment variable.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// NewRootCmd creates a new root command (exported for testing)
func NewRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(loadConfig)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable SQL logging and debug output")
}

// loadConfig loads the configuration when a command needs it. Version
// and help never touch config, so a broken settings file still lets
// them run.
func loadConfig() {
	cmd, _, _ := rootCmd.Find(os.Args[1:])
	if cmd != nil && (cmd.Name() == "version" || cmd.Name() == "help") {
		return
	}

	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}

	if flag := rootCmd.PersistentFlags().Lookup("verbose"); flag != nil && flag.Changed {
		viper.Set("verbose", true)
	}
}
