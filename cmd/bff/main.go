package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/realqkqk123fr/temp-backend/pkg/config"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "bff",
		Short: "Recipe assistant backend-for-frontend",
		Long: `bff serves the recipe assistant web client: accounts and JWT login,
recipe generation and nutrition through the inference service, and a
STOMP-over-websocket endpoint for chat and notifications.

Configuration comes from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to an env-format config file")

	load := func() (*config.Config, error) {
		if configPath != "" {
			return config.LoadWithPath(configPath)
		}
		return config.Load()
	}

	serve := serveCmd(load)
	rootCmd.AddCommand(serve, migrateCmd(load), versionCmd())
	// serve is the default
	rootCmd.RunE = serve.RunE

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bff %s (%s)\n", version, commit)
		},
	}
}
