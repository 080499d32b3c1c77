package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avoronov/converse/internal/config"
)

func newProvidersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Manage custom OpenAI-compatible providers",
		Long: `Manage custom providers for converse.

Custom providers let the server route models to your own OpenAI-compatible
endpoints, such as a local Ollama or an enterprise gateway.

Examples:
  converse providers list
  converse providers show my-ollama
  converse providers add-file providers.json
  converse providers remove my-ollama`,
	}

	cmd.AddCommand(newProvidersListCmd())
	cmd.AddCommand(newProvidersShowCmd())
	cmd.AddCommand(newProvidersAddFileCmd())
	cmd.AddCommand(newProvidersRemoveCmd())
	return cmd
}

func newProvidersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List custom providers",
		RunE:  runProvidersList,
	}
}

func runProvidersList(_ *cobra.Command, _ []string) error {
	manager := config.NewCustomProviderManager("")
	providers, err := manager.Load()
	if err != nil {
		return fmt.Errorf("loading custom providers: %w", err)
	}

	if len(providers) == 0 {
		fmt.Println("No custom providers configured.")
		fmt.Println("Run 'converse providers add-file <path>' to import some.")
		return nil
	}

	for _, p := range providers {
		fmt.Printf("  %s (%s)\n", p.Name, p.ID)
		fmt.Printf("    URL: %s\n", p.BaseURL)
		fmt.Printf("    Models: %d\n", len(p.Models))
	}
	fmt.Printf("\nCustom providers: %d\n", len(providers))
	return nil
}

func newProvidersShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <provider-id>",
		Short: "Show provider details",
		Args:  cobra.ExactArgs(1),
		RunE:  runProvidersShow,
	}
}

func runProvidersShow(_ *cobra.Command, args []string) error {
	manager := config.NewCustomProviderManager("")
	p, err := manager.Get(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Provider: %s\n", p.Name)
	fmt.Printf("ID: %s\n", p.ID)
	fmt.Printf("Type: %s\n", p.Type)
	fmt.Printf("Base URL: %s\n", p.BaseURL)
	if len(p.DefaultHeaders) > 0 {
		fmt.Println("\nDefault Headers:")
		for k, v := range p.DefaultHeaders {
			fmt.Printf("  %s: %s\n", k, v)
		}
	}

	fmt.Printf("\nModels (%d):\n", len(p.Models))
	for _, model := range p.Models {
		fmt.Printf("  %s\n", model.Name)
		fmt.Printf("    ID: %s\n", model.ID)
		if model.ContextWindow > 0 {
			fmt.Printf("    Context: %d tokens\n", model.ContextWindow)
		}
	}
	return nil
}

func newProvidersAddFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-file <file-path>",
		Short: "Import custom providers from a JSON file",
		Long:  `Import custom providers from a JSON file matching the custom-providers.json format.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runProvidersAddFile,
	}
}

func runProvidersAddFile(_ *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0]) //nolint:gosec // Path is a CLI argument.
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	var file config.CustomProvidersFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}
	if len(file.Providers) == 0 {
		return fmt.Errorf("no providers found in file")
	}

	manager := config.NewCustomProviderManager("")
	added := 0
	for _, p := range file.Providers {
		if p.ID == "" || p.BaseURL == "" {
			fmt.Printf("Skipping %q: missing id or base_url\n", p.Name)
			continue
		}
		if err := manager.Add(p); err != nil {
			fmt.Printf("Skipping %s: %v\n", p.ID, err)
			continue
		}
		added++
		fmt.Printf("Added: %s (%s)\n", p.Name, p.ID)
	}

	fmt.Printf("\nAdded %d provider(s) from %s\n", added, args[0])
	return nil
}

func newProvidersRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <provider-id>",
		Short: "Remove a custom provider",
		Args:  cobra.ExactArgs(1),
		RunE:  runProvidersRemove,
	}
}

func runProvidersRemove(_ *cobra.Command, args []string) error {
	manager := config.NewCustomProviderManager("")
	if err := manager.Remove(args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed custom provider: %s\n", args[0])
	fmt.Println("Restart the server for the change to take effect.")
	return nil
}
