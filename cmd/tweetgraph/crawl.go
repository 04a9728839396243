package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tweetgraph/pkg/checkpoint"
	"tweetgraph/pkg/config"
	"tweetgraph/pkg/graph"
	"tweetgraph/pkg/logger"
	"tweetgraph/pkg/metrics"
	"tweetgraph/pkg/pipeline"
	"tweetgraph/pkg/storage"
	"tweetgraph/pkg/twitter"
	"tweetgraph/pkg/ui"
)

var crawlFlags struct {
	bearerToken string
	accounts    string
	hashtags    string
	from        string
	to          string

	skipSeed      bool
	skipTimelines bool
	skipEdges     bool
	skipPruning   bool

	store       string
	storePath   string
	storeDSN    string
	metricsAddr string

	resume       bool
	forceRestart bool
	noCheckpoint bool
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run the crawl phases against the configured store",
	Long: `Run the enabled crawl phases in order against the configured graph store.

The bearer token is taken from --bearer-token, TWEETGRAPH_BEARER_TOKEN, the
config file or the credential stored with 'tweetgraph auth login', in that
order.

An interrupted crawl leaves a checkpoint behind. Re-run with --resume to skip
the phases it completed and continue edge analysis at its last batch, or with
--force-restart to discard it.`,
	Example: `  # Full crawl into the default badger store
  tweetgraph crawl --accounts nasa,esa --hashtags space --from 2021-01-01 --to 2021-02-01

  # Only rebuild edges and prune
  tweetgraph crawl --skip-seed --skip-timelines

  # Crawl into sqlite and expose metrics
  tweetgraph crawl --store sqlite --store-path ./graph.db --metrics-addr :9090

  # Continue an interrupted run
  tweetgraph crawl --resume`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	f := crawlCmd.Flags()
	f.StringVar(&crawlFlags.bearerToken, "bearer-token", "", "API bearer token")
	f.StringVar(&crawlFlags.accounts, "accounts", "", "comma-separated seed usernames")
	f.StringVar(&crawlFlags.hashtags, "hashtags", "", "comma-separated hashtags that make an account involved")
	f.StringVar(&crawlFlags.from, "from", "", "start of the crawl window (YYYY-MM-DD or RFC3339)")
	f.StringVar(&crawlFlags.to, "to", "", "end of the crawl window (YYYY-MM-DD or RFC3339)")
	f.BoolVar(&crawlFlags.skipSeed, "skip-seed", false, "skip seed and follower collection")
	f.BoolVar(&crawlFlags.skipTimelines, "skip-timelines", false, "skip timeline collection")
	f.BoolVar(&crawlFlags.skipEdges, "skip-edges", false, "skip edge analysis")
	f.BoolVar(&crawlFlags.skipPruning, "skip-pruning", false, "skip pruning of the involved subgraph")
	f.StringVar(&crawlFlags.store, "store", "", "store backend (memory, badger, sqlite, postgres)")
	f.StringVar(&crawlFlags.storePath, "store-path", "", "badger directory or sqlite file")
	f.StringVar(&crawlFlags.storeDSN, "store-dsn", "", "postgres connection string")
	f.StringVar(&crawlFlags.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	f.BoolVar(&crawlFlags.resume, "resume", false, "resume from the last checkpoint")
	f.BoolVar(&crawlFlags.forceRestart, "force-restart", false, "discard an existing checkpoint")
	f.BoolVar(&crawlFlags.noCheckpoint, "no-checkpoint", false, "do not record a checkpoint")
	crawlCmd.MarkFlagsMutuallyExclusive("resume", "force-restart")
}

func crawlFlagMap() map[string]interface{} {
	return map[string]interface{}{
		"bearer-token":   crawlFlags.bearerToken,
		"accounts":       crawlFlags.accounts,
		"hashtags":       crawlFlags.hashtags,
		"from":           crawlFlags.from,
		"to":             crawlFlags.to,
		"skip-seed":      crawlFlags.skipSeed,
		"skip-timelines": crawlFlags.skipTimelines,
		"skip-edges":     crawlFlags.skipEdges,
		"skip-pruning":   crawlFlags.skipPruning,
		"store":          crawlFlags.store,
		"store-path":     crawlFlags.storePath,
		"store-dsn":      crawlFlags.storeDSN,
		"metrics-addr":   crawlFlags.metricsAddr,
	}
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(crawlFlagMap())
	if err != nil {
		return err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("tweetgraph starting")

	ui.PrintInfo("Accounts", cfg.Keywords.Accounts)
	ui.PrintInfo("Hashtags", cfg.Keywords.Hashtags)
	ui.PrintInfo("Window", cfg.Keywords.DateFrom+" to "+cfg.Keywords.DateTo)
	ui.PrintInfo("Store", describeStore(cfg.Store))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		metrics.NewServer(cfg.Metrics.Addr, m, log).Start(ctx)
	}

	store, err := storage.Open(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Warn("Failed to close graph store")
		}
	}()

	repo := graph.NewRepository(storage.Instrument(store, m), log)
	client := twitter.NewClient(cfg, log, twitter.WithRecorder(m))

	opts := []pipeline.Option{pipeline.WithRecorder(m)}
	var checkpoints *checkpoint.Manager
	if cfg.Checkpoint.Enabled && !crawlFlags.noCheckpoint {
		checkpoints, err = checkpoint.NewManager(cfg.Checkpoint.Dir, pipeline.Fingerprint(cfg), log)
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithCheckpoints(checkpoints, crawlFlags.resume, crawlFlags.forceRestart))
	}

	orch, err := pipeline.New(cfg, client, repo, log, opts...)
	if err != nil {
		return err
	}
	summary, err := orch.Run(ctx)
	ui.PrintSummary(summary)

	switch {
	case err == nil:
		ui.PrintSuccess("Crawl finished")
	case errors.Is(err, pipeline.ErrCheckpointExists):
		printCheckpoint(checkpoints)
		ui.PrintHint("Re-run with --resume to continue the interrupted crawl or --force-restart to start over")
	case errors.Is(err, pipeline.ErrEdgesNotMaterialized):
		ui.PrintHint("Pruning needs the edges phase; drop --skip-edges or run it once first")
	case ctx.Err() != nil:
		ui.PrintWarning("Crawl interrupted, progress is kept")
	}
	return err
}

func printCheckpoint(m *checkpoint.Manager) {
	info, err := m.GetCheckpointInfo()
	if err != nil || info == nil {
		return
	}
	ui.PrintInfo("Checkpoint", m.Path())
	ui.PrintInfo("Run", fmt.Sprint(info["run_id"]))
	ui.PrintInfo("Completed", fmt.Sprint(info["completed_phases"]))
	if total, _ := info["edge_total"].(int); total > 0 {
		ui.PrintInfo("Edges", fmt.Sprintf("%v of %d tweets", info["edge_offset"], total))
	}
	if age, ok := info["age"].(time.Duration); ok {
		ui.PrintInfo("Last update", age.Round(time.Second).String()+" ago")
	}
}

func describeStore(s config.StoreConfig) string {
	switch s.Backend {
	case config.BackendMemory:
		return "memory (discarded on exit)"
	case config.BackendPostgres:
		return "postgres"
	default:
		return s.Backend + " at " + s.Path
	}
}
