package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/avoronov/converse/internal/api"
	"github.com/avoronov/converse/internal/config"
	"github.com/avoronov/converse/internal/orchestrator"
	"github.com/avoronov/converse/internal/state"
	"github.com/avoronov/converse/internal/upload"
)

func newSendCmd() *cobra.Command {
	var (
		sessionID   string
		filePaths   []string
		search      bool
		model       string
		temperature float64
	)

	cmd := &cobra.Command{
		Use:   "send [message...]",
		Short: "Send a message and print the assistant's reply",
		Long: `Send a chat message through the configured server. Without --session a
new session is created on first use. Attachments are uploaded before the
message is submitted; a file that fails upload twice is dropped and the
send continues without it.`,
		Example: `  converse send "explain goroutines"
  converse send --session 4f1f8c "and channels?"
  converse send --file report.pdf "summarize this"
  converse send --search "latest Go release notes"`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, args, sendOptions{
				sessionID:   sessionID,
				filePaths:   filePaths,
				search:      search,
				model:       model,
				temperature: temperature,
				hasTemp:     cmd.Flags().Changed("temperature"),
			})
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session ID to send into")
	cmd.Flags().StringArrayVarP(&filePaths, "file", "f", nil, "attach a file (repeatable)")
	cmd.Flags().BoolVar(&search, "search", false, "run a web search instead of a chat completion")
	cmd.Flags().StringVarP(&model, "model", "m", "", "override the model for this send")
	cmd.Flags().Float64VarP(&temperature, "temperature", "t", 0, "override the temperature for this send")
	return cmd
}

type sendOptions struct {
	sessionID   string
	filePaths   []string
	search      bool
	model       string
	temperature float64
	hasTemp     bool
}

func runSend(cmd *cobra.Command, args []string, opts sendOptions) error {
	text := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	snap := cfg.Snapshot()
	if opts.model != "" {
		snap.Model = opts.model
	}
	if opts.hasTemp {
		snap.Temperature = opts.temperature
	}

	for _, path := range opts.filePaths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("attachment %s: %w", path, err)
		}
	}

	client := api.NewClient(cfg.EffectiveServerURL())
	uploads := upload.NewCoordinator(client, nil)
	store := state.NewStore(nil, snap.Model, snap.Temperature)
	orch := orchestrator.New(client, uploads, store, nil)

	attachments := make([]upload.Attachment, 0, len(opts.filePaths))
	for _, path := range opts.filePaths {
		attachments = append(attachments, upload.FromPath(path))
	}

	result, err := orch.Send(cmd.Context(), orchestrator.Request{
		SessionID:   opts.sessionID,
		Text:        text,
		Attachments: attachments,
		SearchMode:  opts.search,
		Config:      snap,
	})
	if err != nil {
		var sendErr *orchestrator.SendError
		if errors.As(err, &sendErr) {
			fmt.Fprintln(cmd.ErrOrStderr(), sendErr.Toast)
		}
		return err
	}

	for _, name := range result.DroppedFiles {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s was not attached\n", name)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "session: %s (%s)\n", result.SessionID, result.Session.Title)
	fmt.Fprintln(cmd.OutOrStdout(), result.AssistantMessage.Content)
	return nil
}
