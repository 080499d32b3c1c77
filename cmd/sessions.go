package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/avoronov/converse/internal/api"
	"github.com/avoronov/converse/internal/config"
)

func newSessionsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions on the server",
		Long: `List and manage chat sessions.

Examples:
  converse sessions
  converse sessions --all
  converse sessions close 4f1f8c
  converse sessions delete 4f1f8c`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessions(cmd, all)
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include closed sessions")

	cmd.AddCommand(newSessionsCloseCmd())
	cmd.AddCommand(newSessionsDeleteCmd())
	return cmd
}

func newSessionsCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close <session-id>",
		Short: "Close a session (hide it from the open list)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			if err := client.CloseSession(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("closing session: %w", err)
			}
			fmt.Printf("Closed session: %s\n", args[0])
			return nil
		},
	}
}

func newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Permanently delete a session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			if err := client.DeleteSession(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("deleting session: %w", err)
			}
			fmt.Printf("Deleted session: %s\n", args[0])
			return nil
		},
	}
}

func newAPIClient() (*api.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return api.NewClient(cfg.EffectiveServerURL()), nil
}

func runSessions(cmd *cobra.Command, all bool) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var sessions []api.Session
	if all {
		sessions, err = client.SessionHistory(cmd.Context())
	} else {
		sessions, err = client.ListSessions(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	fmt.Println("Sessions")
	fmt.Println(strings.Repeat("─", 40))
	for _, s := range sessions {
		marker := " "
		if s.IsClosed {
			marker = "x"
		}
		fmt.Printf("[%s] %s  %s\n", marker, s.ID, s.Title)
		fmt.Printf("      %s, %d messages, updated %s\n",
			s.Model, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
