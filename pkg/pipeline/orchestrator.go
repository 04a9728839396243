package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tweetgraph/pkg/checkpoint"
	"tweetgraph/pkg/config"
	"tweetgraph/pkg/graph"
	"tweetgraph/pkg/logger"
	"tweetgraph/pkg/models"
)

// Phase names, in execution order
const (
	PhaseSeed      = "seed"
	PhaseTimelines = "timelines"
	PhaseEdges     = "edges"
	PhasePruning   = "pruning"
)

var (
	// ErrSeedResolution stops the run when no seed account could be resolved
	ErrSeedResolution = stderrors.New("seed account resolution returned no accounts")

	// ErrEdgesNotMaterialized refuses pruning when edge analysis did not run
	// in this crawl and the store holds no involved edges
	ErrEdgesNotMaterialized = stderrors.New("involved edges have not been built")

	// ErrCheckpointExists is returned when a previous run left a checkpoint
	// and neither resume nor restart was requested
	ErrCheckpointExists = stderrors.New("checkpoint exists - use --resume to continue or --force-restart to start fresh")
)

// PhaseResult describes how one phase ended
type PhaseResult struct {
	Name    string
	Skipped bool
	Reason  string
	Elapsed time.Duration
}

// Stats counts what the phases did
type Stats struct {
	SeedAccounts       int
	AccountsDiscovered int
	FetchErrors        int

	TimelinesFetched int
	TimelinesSkipped int
	TweetsStored     int
	InvolvedAccounts int
	InvolvedTweets   int

	TweetsAnalyzed       int
	TweetErrors          int
	MentionEdges         int
	InvolvedMentionEdges int
	RetweetEdges         int
	InvolvedRetweetEdges int
	UnresolvedReferences int

	Pruned int
}

// Summary is returned by Run
type Summary struct {
	RunID    string
	Resumed  bool
	Started  time.Time
	Finished time.Time
	Phases   []PhaseResult
	Stats    Stats
	Counts   graph.Counts
}

// Orchestrator runs the crawl phases in order against one store
type Orchestrator struct {
	client   CrawlClient
	repo     *graph.Repository
	log      logger.Logger
	recorder Recorder

	steps     config.StepsConfig
	usernames []string
	hashtags  []string
	from, to  time.Time
	batchSize int

	checkpoints  *checkpoint.Manager
	fingerprint  string
	resume       bool
	forceRestart bool
	cp           *checkpoint.Checkpoint

	runID string
	stats Stats

	// carried between phases
	accounts       []models.Account
	involved       []models.Account
	involvedTweets []models.Tweet
	edgesBuilt     bool
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithRecorder reports phase metrics to r
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithCheckpoints persists progress through m. With resume set, a matching
// checkpoint left by an interrupted run is continued; with forceRestart set
// it is discarded.
func WithCheckpoints(m *checkpoint.Manager, resume, forceRestart bool) Option {
	return func(o *Orchestrator) {
		o.checkpoints = m
		o.resume = resume
		o.forceRestart = forceRestart
	}
}

// WithRunID overrides the generated run id
func WithRunID(id string) Option {
	return func(o *Orchestrator) {
		o.runID = id
	}
}

// Fingerprint identifies a crawl by its accounts, hashtags, window and store
func Fingerprint(cfg *config.Config) string {
	return checkpoint.Fingerprint(
		strings.Join(cfg.Keywords.AccountList(), ","),
		strings.ToLower(strings.Join(cfg.Keywords.HashtagList(), ",")),
		cfg.Keywords.DateFrom,
		cfg.Keywords.DateTo,
		cfg.Store.Backend,
		cfg.Store.Path,
		cfg.Store.DSN,
	)
}

// New creates an Orchestrator for the run described by cfg
func New(cfg *config.Config, client CrawlClient, repo *graph.Repository, log logger.Logger, opts ...Option) (*Orchestrator, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	o := &Orchestrator{
		client:      client,
		repo:        repo,
		log:         log,
		recorder:    nopRecorder{},
		steps:       cfg.Steps,
		usernames:   cfg.Keywords.AccountList(),
		hashtags:    cfg.Keywords.HashtagList(),
		batchSize:   cfg.RateLimit.BatchSize,
		fingerprint: Fingerprint(cfg),
	}
	if o.batchSize <= 0 {
		o.batchSize = config.DefaultConfig().RateLimit.BatchSize
	}

	if cfg.Steps.Timelines {
		from, to, err := cfg.Keywords.Window()
		if err != nil {
			return nil, fmt.Errorf("invalid crawl window: %w", err)
		}
		o.from, o.to = from, to
	}

	for _, opt := range opts {
		opt(o)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	return o, nil
}

// RunID returns the id tagging this run's log lines
func (o *Orchestrator) RunID() string {
	return o.runID
}

// phase pairs a step with the loader that reads what the step would have
// produced when it is skipped
type phase struct {
	name    string
	enabled bool
	run     func(context.Context) error
	load    func(context.Context) error
}

// Run executes the enabled phases in order. A failed phase stops the run;
// the summary gathered up to that point is returned with the error.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{Started: time.Now()}

	if err := o.openCheckpoint(); err != nil {
		return nil, err
	}
	summary.RunID = o.runID
	summary.Resumed = o.cp != nil && len(o.cp.CompletedPhases) > 0

	o.log = o.log.WithField("run_id", o.runID)
	o.log.InfoWithFields("Crawl started", map[string]interface{}{
		"accounts": o.usernames,
		"hashtags": o.hashtags,
		"resumed":  summary.Resumed,
	})

	phases := []phase{
		{PhaseSeed, o.steps.Seed, o.seed, o.loadAccounts},
		{PhaseTimelines, o.steps.Timelines, o.timelines, o.loadInvolved},
		{PhaseEdges, o.steps.Edges, o.edges, o.markEdgesFromCheckpoint},
		{PhasePruning, o.steps.Pruning, o.prune, nil},
	}

	for _, p := range phases {
		reason := ""
		switch {
		case !p.enabled:
			reason = "disabled"
		case o.cp != nil && o.cp.IsPhaseComplete(p.name):
			reason = "completed by an earlier run"
		}

		if reason != "" {
			logger.LogPhaseSkipped(o.log, p.name, reason)
			summary.Phases = append(summary.Phases, PhaseResult{Name: p.name, Skipped: true, Reason: reason})
			if p.load != nil {
				if err := p.load(ctx); err != nil {
					return o.finish(ctx, summary, fmt.Errorf("%s: %w", p.name, err))
				}
			}
			continue
		}

		logger.LogPhaseStart(o.log, p.name, nil)
		start := time.Now()
		if err := p.run(ctx); err != nil {
			o.log.WithError(err).WithField("phase", p.name).Error("Phase failed")
			return o.finish(ctx, summary, fmt.Errorf("%s: %w", p.name, err))
		}
		elapsed := time.Since(start)
		o.recorder.ObservePhase(p.name, elapsed)
		logger.LogPhaseDone(o.log, p.name, elapsed, nil)
		summary.Phases = append(summary.Phases, PhaseResult{Name: p.name, Elapsed: elapsed})

		if o.cp != nil {
			if err := o.checkpoints.CompletePhase(o.cp, p.name); err != nil {
				o.log.WithError(err).Warn("Failed to save checkpoint")
			}
		}
	}

	if o.checkpoints != nil {
		if err := o.checkpoints.Delete(); err != nil {
			o.log.WithError(err).Warn("Failed to delete checkpoint")
		}
	}
	return o.finish(ctx, summary, nil)
}

// finish fills in counts and timings. Counting is skipped when the context
// is already done.
func (o *Orchestrator) finish(ctx context.Context, summary *Summary, runErr error) (*Summary, error) {
	summary.Stats = o.stats
	summary.Finished = time.Now()

	if ctx.Err() == nil {
		counts, err := o.repo.Summary(ctx)
		if err != nil {
			o.log.WithError(err).Warn("Failed to count collections")
		} else {
			summary.Counts = counts
		}
	}

	fields := map[string]interface{}{
		"elapsed":         summary.Finished.Sub(summary.Started),
		"accounts_added":  o.stats.AccountsDiscovered,
		"tweets_stored":   o.stats.TweetsStored,
		"tweets_analyzed": o.stats.TweetsAnalyzed,
		"tweet_errors":    o.stats.TweetErrors,
		"accounts_pruned": o.stats.Pruned,
	}
	for coll, n := range summary.Counts {
		fields[string(coll)] = n
	}
	if runErr != nil {
		o.log.WithError(runErr).ErrorWithFields("Crawl stopped", fields)
	} else {
		o.log.InfoWithFields("Crawl finished", fields)
	}
	return summary, runErr
}

// openCheckpoint loads or creates the checkpoint for this crawl
func (o *Orchestrator) openCheckpoint() error {
	if o.checkpoints == nil {
		return nil
	}

	if o.forceRestart && o.checkpoints.Exists() {
		if err := o.checkpoints.BackupCheckpoint(); err != nil {
			o.log.WithError(err).Warn("Failed to back up existing checkpoint")
		}
		if err := o.checkpoints.Delete(); err != nil {
			o.log.WithError(err).Warn("Failed to delete existing checkpoint")
		}
	}

	if o.checkpoints.Exists() {
		if !o.resume {
			return ErrCheckpointExists
		}
		cp, err := o.checkpoints.Load()
		if err != nil {
			return fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if cp != nil && cp.Fingerprint == o.fingerprint {
			o.cp = cp
			o.runID = cp.RunID
			o.log.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
				"run_id":           cp.RunID,
				"completed_phases": cp.CompletedPhases,
				"edge_offset":      cp.EdgeOffset,
			})
			return nil
		}
		o.log.Warn("Checkpoint belongs to a different crawl, starting fresh")
	}

	cp, err := o.checkpoints.Create(o.runID, o.fingerprint)
	if err != nil {
		return err
	}
	o.cp = cp
	return nil
}
