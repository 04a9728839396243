package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tweetgraph/pkg/auth"
	"tweetgraph/pkg/config"
	"tweetgraph/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage tweetgraph configuration files.

Values are merged in this order, later sources winning:
  - defaults
  - configuration file
  - .env and TWEETGRAPH_* environment variables
  - command line flags`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every option set to its default",
	Long: `Write a configuration file with every option set to its default.

The file is created as ./tweetgraph.yaml unless --config names another path.
The bearer token is left empty; store it with 'tweetgraph auth login'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = "tweetgraph.yaml"
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file %s already exists", path)
		}

		cfg := config.DefaultConfig()
		cfg.Keywords = config.KeywordsConfig{
			Accounts: "nasa,esa",
			Hashtags: "space",
			DateFrom: "2021-01-01",
			DateTo:   "2021-02-01",
		}
		if err := cfg.Save(path); err != nil {
			return err
		}
		ui.PrintSuccess("Wrote " + path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := mergedConfig()
		if err != nil {
			return err
		}
		if cfg.Twitter.BearerToken != "" {
			cfg.Twitter.BearerToken = (&auth.Credential{BearerToken: cfg.Twitter.BearerToken}).Masked().BearerToken
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the merged configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := mergedConfig()
		if err != nil {
			return err
		}
		if cfg.Twitter.BearerToken == "" {
			if token, err := storedToken(); err == nil {
				cfg.Twitter.BearerToken = token
			}
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration is invalid:\n%w", err)
		}
		ui.PrintSuccess("Configuration is valid")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
}

// mergedConfig loads every source without validating
func mergedConfig() (*config.Config, error) {
	flags := map[string]interface{}{}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return config.Merge(configFile, flags)
}
