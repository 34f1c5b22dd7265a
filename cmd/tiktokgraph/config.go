package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tiktokgraph/pkg/config"
	"tiktokgraph/pkg/ratelimit"
	"tiktokgraph/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage tiktokgraph configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (TIKTOKGRAPH_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Long: `Write the default configuration with all available options.

The file is created as 'tiktokgraph.yaml' in the current directory
unless a different path is given with --config.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging all sources.
The client secret is masked.`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "tiktokgraph.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Run 'tiktokgraph auth login' or set research.client_key and research.client_secret")
	fmt.Println("2. Run 'tiktokgraph config validate' to check the configuration")
	fmt.Println("3. Start crawling with 'tiktokgraph crawl followers <handle>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	display := *cfg
	display.Research.ClientSecret = maskSecret(display.Research.ClientSecret)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	if cfg.Research.ClientKey == "" || cfg.Research.ClientSecret == "" {
		ui.PrintWarning("Research API credentials not configured", "stored accounts will be used")
	}
	if _, err := ratelimit.QuotasFromConfig(cfg.Quotas); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Base URL: %s\n", cfg.Research.BaseURL)
	fmt.Printf("  Quotas: %v\n", cfg.Quotas)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Total count: %d, fetch all: %t\n", cfg.Crawl.TotalCount, cfg.Crawl.FetchAll)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
