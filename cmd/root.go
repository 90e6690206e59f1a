package cmd

import (
	"fmt"
	"os"

	"WaveDeck/config"
	"WaveDeck/logger"
	"WaveDeck/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wavedeck",
	Short: "WaveDeck is a single-user audio library and streaming server.",
	Long: `WaveDeck stores uploaded audio files, lists them as a playlist and streams
them with HTTP byte-range support. Without a subcommand it starts the server.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(loadConfig())
	},
}

// loadConfig reads the configuration and initialises the process logger from it.
func loadConfig() *config.Config {
	cfg := config.Load()
	logger.InitLogger(cfg.Log)
	return cfg
}

// Execute executes the root command.
func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		logger.Sync()
		os.Exit(1)
	}
}
