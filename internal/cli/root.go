package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var port, configPath string

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:   "quiz-race",
		Short: "Multiplayer quiz races with live leaderboards",
		Long: "quiz-race coordinates study races over generated material: rosters, " +
			"per-participant leaderboards and progressions, streamed over websockets.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&port, "port", os.Getenv("PORT"),
		"HTTP port for the race API and leaderboard socket (overrides server.port; default 8080)")
	cmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig,
		"YAML config with redis, postgres, material cache and generator settings")
	cmd.AddCommand(NewStartCmd(&configPath, &port))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	return cmd
}
