// Package cmd provides the CLI commands for converse.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/avoronov/converse/internal/debug"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "converse",
		Short: "Multi-provider AI chat with sessions and file attachments",
		Long: `Converse is an AI chat tool backed by multiple model providers
(Gemini, OpenRouter, Exa search, and custom OpenAI-compatible endpoints).

It ships both sides of the system:
  - serve: the HTTP API holding sessions, messages, and uploads
  - send:  the client pipeline that submits a message to a session`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			debugMode, err := cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("getting debug flag: %w", err)
			}
			if debugMode {
				logPath := filepath.Join(xdg.DataHome, "converse", "debug.log")
				if debugErr := debug.Enable(logPath); debugErr != nil {
					fmt.Fprintf(os.Stderr, "Warning: Failed to enable debug logging: %v\n", debugErr)
				} else {
					fmt.Fprintf(os.Stderr, "Debug: %s\n", logPath)
				}
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			debug.Disable()
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging to the data directory")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSendCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newProvidersCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
