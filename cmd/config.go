package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/avoronov/converse/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the client configuration",
		Long: `Inspect and edit the converse configuration file.

Examples:
  converse config show
  converse config set model gemini-2.5-pro
  converse config set temperature 0.4
  converse config set server_url http://localhost:5000/api
  converse config set keys.gemini YOUR_KEY`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE:  runConfigShow,
	}
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Printf("Server URL:  %s\n", cfg.EffectiveServerURL())
	fmt.Printf("Model:       %s\n", cfg.EffectiveModel())
	fmt.Printf("Temperature: %g\n", cfg.EffectiveTemperature())
	fmt.Println()

	fmt.Println("Keys:")
	printKeyStatus("gemini", cfg.Keys.Gemini)
	printKeyStatus("openrouter", cfg.Keys.OpenRouter)
	printKeyStatus("exa", cfg.Keys.Exa)
	fmt.Println()

	if len(cfg.ModelBindings) > 0 {
		fmt.Println("Model Bindings:")
		for model, provider := range cfg.ModelBindings {
			fmt.Printf("  %s -> %s\n", model, provider)
		}
		fmt.Println()
	}

	fmt.Printf("Config File: %s\n", config.GlobalConfigPath())
	return nil
}

func printKeyStatus(name, key string) {
	status := "not set"
	if key != "" {
		status = "set"
	}
	fmt.Printf("  %s: %s\n", name, status)
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a single configuration value by its JSON path. Numeric and boolean
values are stored as such; everything else is stored as a string.`,
		Args: cobra.ExactArgs(2),
		RunE: runConfigSet,
	}
}

func runConfigSet(_ *cobra.Command, args []string) error {
	key, raw := args[0], args[1]

	var value any = raw
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		value = n
	} else if b, err := strconv.ParseBool(raw); err == nil {
		value = b
	}

	if err := config.Set(key, value); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}

	fmt.Printf("Set %s\n", key)
	return nil
}
