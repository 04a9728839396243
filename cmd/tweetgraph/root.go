package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"tweetgraph/pkg/auth"
	"tweetgraph/pkg/config"
	"tweetgraph/pkg/ui"
)

var (
	// Version information, set with -ldflags
	version   = "0.1.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	profile    string
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "tweetgraph",
	Short: "Crawl follower and interaction graphs from the Twitter API",
	Long: `tweetgraph builds a follower and interaction graph around a set of seed
accounts.

A crawl runs four phases:
  1. seed       resolve the seed accounts and store all of their followers
  2. timelines  fetch every account's tweets inside the crawl window and tag
                accounts that used one of the hashtags as involved
  3. edges      write mention and retweet edges for the full graph and the
                involved subgraph
  4. pruning    drop involved accounts without any involved edge

Every phase can be skipped and a crawl can be re-run; nothing already stored
is fetched twice.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.Output = io.Discard
		}
		if cmd.Name() == "crawl" {
			ui.PrintLogo()
		}
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: ./tweetgraph.yaml or ~/.config/tweetgraph/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", auth.DefaultProfile, "stored credential profile")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "print nothing but logs and errors")

	rootCmd.SetVersionTemplate(`tweetgraph {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tweetgraph %s (commit: %s, built: %s) %s %s/%s\n",
				version, gitCommit, buildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	})
}

// loadConfig merges file, environment and flags, falling back to the stored
// credential of --profile for the bearer token
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return config.LoadWithToken(configFile, flags, storedToken)
}

func storedToken() (string, error) {
	manager, err := auth.NewManager()
	if err != nil {
		return "", err
	}
	return manager.Token(profile)
}
