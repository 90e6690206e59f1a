package cmd

import (
	"WaveDeck/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the WaveDeck server",
	Long:  `Start the HTTP server that serves the track API, the audio streams and, when present, the web UI.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(loadConfig())
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
