package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tern",
	Short: "Tern - chat backend API server",
	Long: `Tern is the REST backend for a chat application. It manages
accounts, conversations, and messages, and forwards chat turns to the
Gemini completion service.

Run "tern serve" to start the HTTP API server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
