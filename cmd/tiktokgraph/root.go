package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"tiktokgraph/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tiktokgraph",
	Short: "Crawl TikTok follower graphs through the Research API",
	Long: `tiktokgraph collects followers and followings of TikTok accounts through
the TikTok Research API and prints them as edge and node tables.

Every API call is counted against the daily quota of its endpoint:
  - followers   20000 calls per day
  - followings  20000 calls per day
  - users_info   1000 calls per day

When a quota is used up the crawler sleeps until the next 00:00 UTC
and continues from there.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetNoColor(noColor)
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}
		// machine readable output must not be mixed with banners
		if f := cmd.Flags().Lookup("format"); f != nil && f.Value.String() != "table" {
			ui.SetQuietMode(true)
		}

		if cmd.Name() != "version" && cmd.Name() != "help" && cmd.Name() != "completion" {
			ui.PrintBanner()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.config/tiktokgraph/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors and tables")

	rootCmd.SetVersionTemplate(`tiktokgraph {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
