package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"tweetgraph/pkg/logger"
	"tweetgraph/pkg/twitter"
	"tweetgraph/pkg/ui"
)

var searchFlags struct {
	hashtags string
	from     string
	to       string
}

var searchCmd = &cobra.Command{
	Use:   "search <username>",
	Short: "List an account's tweets carrying the hashtags, via full-archive search",
	Long: `Query full-archive search for tweets posted by one account that carry any
of the configured hashtags inside the crawl window. Nothing is stored.

Archive search has its own rate limit and keeps at least one second between
calls.`,
	Example: `  tweetgraph search nasa --hashtags space,moon --from 2021-01-01 --to 2021-02-01`,
	Args:    cobra.ExactArgs(1),
	RunE:    runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchFlags.hashtags, "hashtags", "", "comma-separated hashtags")
	searchCmd.Flags().StringVar(&searchFlags.from, "from", "", "start of the window")
	searchCmd.Flags().StringVar(&searchFlags.to, "to", "", "end of the window")
}

func runSearch(cmd *cobra.Command, args []string) error {
	account := strings.TrimPrefix(strings.TrimSpace(args[0]), "@")
	cfg, err := loadConfig(map[string]interface{}{
		"accounts": account,
		"hashtags": searchFlags.hashtags,
		"from":     searchFlags.from,
		"to":       searchFlags.to,
	})
	if err != nil {
		return err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	from, to, err := cfg.Keywords.Window()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	client := twitter.NewClient(cfg, logger.GetLogger())
	tweets, err := client.SearchByHashtags(ctx, account, from, to, cfg.Keywords.HashtagList())
	for _, t := range tweets {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", t.ID, t.CreatedAt, strings.ReplaceAll(t.Text, "\n", " "))
	}
	if err != nil {
		ui.PrintWarning(fmt.Sprintf("Search stopped early after %d tweets", len(tweets)))
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("%d tweets found", len(tweets)))
	return nil
}
