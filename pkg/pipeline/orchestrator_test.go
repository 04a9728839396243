package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetgraph/pkg/checkpoint"
	"tweetgraph/pkg/config"
	"tweetgraph/pkg/graph"
	"tweetgraph/pkg/graphstore"
	"tweetgraph/pkg/graphstore/memstore"
	"tweetgraph/pkg/logger"
	"tweetgraph/pkg/models"
)

// fakeClient serves canned accounts and tweets and records every call
type fakeClient struct {
	mu sync.Mutex

	accounts    map[string]models.Account
	resolveErr  error
	followers   map[string][]models.Account
	followerErr map[string]error
	timelines   map[string][]models.Tweet
	timelineErr map[string]error

	// onTimeline runs before a timeline is served
	onTimeline func(userID string)

	resolveCalls  int
	followerCalls []string
	timelineCalls []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		accounts:    map[string]models.Account{},
		followers:   map[string][]models.Account{},
		followerErr: map[string]error{},
		timelines:   map[string][]models.Tweet{},
		timelineErr: map[string]error{},
	}
}

func (f *fakeClient) ResolveAccounts(ctx context.Context, usernames []string) ([]models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []models.Account
	for _, u := range usernames {
		if a, ok := f.accounts[u]; ok {
			out = append(out, a)
		}
	}
	return out, f.resolveErr
}

func (f *fakeClient) FetchFollowers(ctx context.Context, userID string) ([]models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followerCalls = append(f.followerCalls, userID)
	return append([]models.Account(nil), f.followers[userID]...), f.followerErr[userID]
}

func (f *fakeClient) FetchTimeline(ctx context.Context, userID string, from, to time.Time) ([]models.Tweet, error) {
	if f.onTimeline != nil {
		f.onTimeline(userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timelineCalls = append(f.timelineCalls, userID)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]models.Tweet(nil), f.timelines[userID]...), f.timelineErr[userID]
}

type fakeRecorder struct {
	mu         sync.Mutex
	phases     map[string]int
	progress   map[string]int
	itemErrors map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{phases: map[string]int{}, progress: map[string]int{}, itemErrors: map[string]int{}}
}

func (r *fakeRecorder) ObservePhase(phase string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases[phase]++
}

func (r *fakeRecorder) SetProgress(phase string, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress[phase] = percent
}

func (r *fakeRecorder) IncItemError(phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.itemErrors[phase]++
}

func account(id string) models.Account {
	return models.Account{ID: id, Username: "user" + id, Name: "User " + id}
}

type tweetSpec struct {
	id, author string
	hashtags   []string
	mentions   []string
	refs       []string
}

func tweet(s tweetSpec) models.Tweet {
	t := models.Tweet{ID: s.id, AuthorID: s.author, Text: "tweet " + s.id}
	if len(s.hashtags) > 0 || len(s.mentions) > 0 {
		t.Entities = &models.Entities{}
		for _, h := range s.hashtags {
			t.Entities.Hashtags = append(t.Entities.Hashtags, models.Hashtag{Tag: h})
		}
		for _, m := range s.mentions {
			t.Entities.Mentions = append(t.Entities.Mentions, models.Mention{ID: m, Username: "user" + m})
		}
	}
	for _, r := range s.refs {
		t.ReferencedTweets = append(t.ReferencedTweets, models.ReferencedTweet{Type: "retweeted", ID: r})
	}
	return t
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Twitter.BearerToken = "secret"
	cfg.Keywords.Accounts = "user1"
	cfg.Keywords.Hashtags = "foo"
	cfg.Keywords.DateFrom = "2021-01-01"
	cfg.Keywords.DateTo = "2021-02-01"
	cfg.Store.Backend = config.BackendMemory
	return cfg
}

func steps(seed, timelines, edges, pruning bool) config.StepsConfig {
	return config.StepsConfig{Seed: seed, Timelines: timelines, Edges: edges, Pruning: pruning}
}

// scenarioClient is seed 1 with followers 2 and 3; 1 posts t1 tagged #foo
// mentioning 2
func scenarioClient() *fakeClient {
	c := newFakeClient()
	c.accounts["user1"] = account("1")
	c.followers["1"] = []models.Account{account("2"), account("3")}
	c.timelines["1"] = []models.Tweet{tweet(tweetSpec{id: "t1", author: "1", hashtags: []string{"foo"}, mentions: []string{"2"}})}
	return c
}

type harness struct {
	store *memstore.Store
	repo  *graph.Repository
	log   *logger.TestLogger
	rec   *fakeRecorder
}

func newHarness() *harness {
	store := memstore.New()
	log := logger.NewTestLogger()
	return &harness{store: store, repo: graph.NewRepository(store, log), log: log, rec: newFakeRecorder()}
}

func (h *harness) run(t *testing.T, cfg *config.Config, client CrawlClient, opts ...Option) (*Summary, error) {
	t.Helper()
	opts = append([]Option{WithRecorder(h.rec)}, opts...)
	orch, err := New(cfg, client, h.repo, h.log, opts...)
	require.NoError(t, err)
	return orch.Run(context.Background())
}

func (h *harness) exists(t *testing.T, coll graphstore.Collection, key string) bool {
	t.Helper()
	ok, err := h.store.Exists(context.Background(), coll, key)
	require.NoError(t, err)
	return ok
}

func (h *harness) count(t *testing.T, coll graphstore.Collection) int {
	t.Helper()
	n, err := h.store.Count(context.Background(), coll)
	require.NoError(t, err)
	return n
}

func TestScenarioPhaseByPhase(t *testing.T) {
	h := newHarness()
	client := scenarioClient()
	cfg := testConfig()

	cfg.Steps = steps(true, false, false, false)
	_, err := h.run(t, cfg, client)
	require.NoError(t, err)
	for _, id := range []string{"1", "2", "3"} {
		assert.True(t, h.exists(t, graphstore.Users, id), "account %s", id)
	}

	cfg.Steps = steps(false, true, false, false)
	_, err = h.run(t, cfg, client)
	require.NoError(t, err)
	assert.True(t, h.exists(t, graphstore.UsersInvolved, "1"))
	assert.Equal(t, 1, h.count(t, graphstore.UsersInvolved))
	assert.True(t, h.exists(t, graphstore.TweetsInvolved, "t1"))
	a, found, err := h.repo.Account(context.Background(), "1")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, a.Step2Performed)

	cfg.Steps = steps(false, false, true, false)
	_, err = h.run(t, cfg, client)
	require.NoError(t, err)
	assert.True(t, h.exists(t, graphstore.MentionRelationships, "ME1-2"))
	assert.Equal(t, 0, h.count(t, graphstore.MentionRelationshipsInvolved))

	cfg.Steps = steps(false, false, true, true)
	summary, err := h.run(t, cfg, client)
	require.NoError(t, err)
	assert.False(t, h.exists(t, graphstore.UsersInvolved, "1"))
	assert.True(t, h.exists(t, graphstore.Users, "1"))
	assert.Equal(t, 1, summary.Stats.Pruned)
}

func TestScenarioFullRun(t *testing.T) {
	h := newHarness()
	client := scenarioClient()

	summary, err := h.run(t, testConfig(), client)
	require.NoError(t, err)

	assert.Equal(t, graph.Counts{
		graphstore.Users:                        3,
		graphstore.UsersInvolved:                0,
		graphstore.Tweets:                       1,
		graphstore.TweetsInvolved:               1,
		graphstore.MentionRelationships:         1,
		graphstore.MentionRelationshipsInvolved: 0,
		graphstore.RetweetRelationships:         0,
		graphstore.RetweetRelationshipsInvolved: 0,
	}, summary.Counts)

	assert.Equal(t, 1, summary.Stats.SeedAccounts)
	assert.Equal(t, 3, summary.Stats.AccountsDiscovered)
	assert.Equal(t, 3, summary.Stats.TimelinesFetched)
	assert.Equal(t, 1, summary.Stats.InvolvedAccounts)
	assert.Equal(t, 1, summary.Stats.MentionEdges)
	assert.Equal(t, 0, summary.Stats.InvolvedMentionEdges)
	assert.Equal(t, 1, summary.Stats.Pruned)
	assert.Equal(t, []string{"1", "2", "3"}, client.timelineCalls)

	require.Len(t, summary.Phases, 4)
	for _, p := range summary.Phases {
		assert.False(t, p.Skipped, p.Name)
		assert.Equal(t, 1, h.rec.phases[p.Name], p.Name)
	}
	assert.Equal(t, 100, h.rec.progress[PhaseTimelines])
	assert.NotEmpty(t, summary.RunID)
	assert.True(t, h.log.HasMessage("Crawl finished"))
}

func TestTimelineReentryFetchesNothingTwice(t *testing.T) {
	h := newHarness()
	client := scenarioClient()
	cfg := testConfig()
	cfg.Steps = steps(true, true, false, false)

	_, err := h.run(t, cfg, client)
	require.NoError(t, err)
	require.Len(t, client.timelineCalls, 3)

	summary, err := h.run(t, cfg, client)
	require.NoError(t, err)

	assert.Len(t, client.timelineCalls, 3)
	assert.Equal(t, 0, summary.Stats.TimelinesFetched)
	assert.Equal(t, 3, summary.Stats.TimelinesSkipped)
	assert.Equal(t, 0, summary.Stats.AccountsDiscovered)
	assert.Equal(t, 1, h.count(t, graphstore.Tweets))
	assert.Equal(t, 1, h.count(t, graphstore.TweetsInvolved))
	assert.Equal(t, 1, h.count(t, graphstore.UsersInvolved))
}

func TestSeedResolutionFailureStopsRun(t *testing.T) {
	tests := []struct {
		name  string
		cause error
	}{
		{"no accounts", nil},
		{"lookup error", errors.New("unauthorized")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			client := newFakeClient()
			client.resolveErr = tt.cause

			summary, err := h.run(t, testConfig(), client)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSeedResolution)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
			assert.Empty(t, client.followerCalls)
			assert.Empty(t, client.timelineCalls)
			assert.Equal(t, 0, summary.Counts[graphstore.Users])
			assert.True(t, h.log.HasMessage("Crawl stopped"))
		})
	}
}

func TestFollowerFailureKeepsPartialResult(t *testing.T) {
	h := newHarness()
	client := scenarioClient()
	client.followers["1"] = []models.Account{account("2")}
	client.followerErr["1"] = errors.New("503")

	cfg := testConfig()
	cfg.Steps = steps(true, true, false, false)
	summary, err := h.run(t, cfg, client)
	require.NoError(t, err)

	assert.True(t, h.exists(t, graphstore.Users, "2"))
	assert.False(t, h.exists(t, graphstore.Users, "3"))
	assert.Equal(t, 1, summary.Stats.FetchErrors)
	assert.Equal(t, 1, h.rec.itemErrors[PhaseSeed])
	assert.Equal(t, []string{"1", "2"}, client.timelineCalls)
}

func TestPartialTimelineIsStoredAndMarked(t *testing.T) {
	h := newHarness()
	client := scenarioClient()
	client.timelineErr["1"] = errors.New("rate limited")

	cfg := testConfig()
	cfg.Steps = steps(true, true, false, false)
	_, err := h.run(t, cfg, client)
	require.NoError(t, err)

	assert.True(t, h.exists(t, graphstore.Tweets, "t1"))
	a, _, err := h.repo.Account(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, a.Step2Performed)
	assert.Equal(t, 1, h.rec.itemErrors[PhaseTimelines])
}

func TestHashtagMatchIgnoresCase(t *testing.T) {
	h := newHarness()
	client := scenarioClient()
	client.timelines["2"] = []models.Tweet{
		tweet(tweetSpec{id: "t2", author: "2", hashtags: []string{"FOO"}}),
		tweet(tweetSpec{id: "t3", author: "2", hashtags: []string{"food"}}),
	}

	cfg := testConfig()
	cfg.Keywords.Hashtags = "#Foo"
	cfg.Steps = steps(true, true, false, false)
	_, err := h.run(t, cfg, client)
	require.NoError(t, err)

	assert.True(t, h.exists(t, graphstore.UsersInvolved, "2"))
	assert.True(t, h.exists(t, graphstore.TweetsInvolved, "t2"))
	assert.False(t, h.exists(t, graphstore.TweetsInvolved, "t3"))
	assert.False(t, h.exists(t, graphstore.UsersInvolved, "3"))
}

func TestEdgesBetweenInvolvedAccounts(t *testing.T) {
	h := newHarness()
	client := scenarioClient()
	client.timelines["2"] = []models.Tweet{
		tweet(tweetSpec{id: "t2", author: "2", hashtags: []string{"foo"}, mentions: []string{"1", "99"}}),
		tweet(tweetSpec{id: "t3", author: "2", refs: []string{"t1", "missing"}}),
	}

	summary, err := h.run(t, testConfig(), client)
	require.NoError(t, err)

	assert.True(t, h.exists(t, graphstore.MentionRelationshipsInvolved, "ME1-2"))
	assert.True(t, h.exists(t, graphstore.MentionRelationshipsInvolved, "ME2-1"))
	assert.True(t, h.exists(t, graphstore.MentionRelationships, "ME1-2"))
	assert.True(t, h.exists(t, graphstore.MentionRelationships, "ME2-1"))
	assert.False(t, h.exists(t, graphstore.MentionRelationships, "ME2-99"))
	assert.True(t, h.exists(t, graphstore.RetweetRelationshipsInvolved, "RE2-1"))
	assert.True(t, h.exists(t, graphstore.RetweetRelationships, "RE2-1"))
	assert.Equal(t, 1, summary.Stats.UnresolvedReferences)

	// 1 and 2 are connected, 3 was never involved
	assert.Equal(t, 0, summary.Stats.Pruned)
	assert.Equal(t, 2, h.count(t, graphstore.UsersInvolved))
}

func TestMalformedTweetDoesNotAbortScan(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	for _, id := range []string{"1", "2"} {
		a := account(id)
		_, err := h.repo.AddAccount(ctx, &a)
		require.NoError(t, err)
	}
	good := tweet(tweetSpec{id: "a", author: "1", mentions: []string{"2"}})
	_, err := h.repo.AddTweet(ctx, &good)
	require.NoError(t, err)
	_, err = h.store.Insert(ctx, graphstore.Tweets, graphstore.Document{
		Key:  "bad",
		Data: json.RawMessage(`{"_key":"bad","id":"bad","author_id":"1","entities":"oops"}`),
	})
	require.NoError(t, err)
	orphan := tweet(tweetSpec{id: "c"})
	_, err = h.repo.AddTweet(ctx, &orphan)
	require.NoError(t, err)
	rt := tweet(tweetSpec{id: "d", author: "2", refs: []string{"a"}})
	_, err = h.repo.AddTweet(ctx, &rt)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Steps = steps(false, false, true, false)
	cfg.RateLimit.BatchSize = 3
	summary, err := h.run(t, cfg, newFakeClient())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Stats.TweetsAnalyzed)
	assert.Equal(t, 2, summary.Stats.TweetErrors)
	assert.Equal(t, 2, h.rec.itemErrors[PhaseEdges])
	assert.True(t, h.exists(t, graphstore.MentionRelationships, "ME1-2"))
	assert.True(t, h.exists(t, graphstore.RetweetRelationships, "RE2-1"))

	failed := h.log.FindMessages("Tweet analysis failed, continuing")
	require.Len(t, failed, 2)
	assert.Equal(t, 1, failed[0].Field("offset"))
	assert.Equal(t, "bad", failed[0].Field("key"))
	assert.Equal(t, 2, failed[1].Field("offset"))
	assert.Len(t, h.log.FindMessages("Analyzing tweet batch"), 2)
}

func TestPruningRequiresEdges(t *testing.T) {
	h := newHarness()
	a := account("1")
	_, err := h.repo.AddInvolvedAccount(context.Background(), &a)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Steps = steps(false, false, false, true)
	_, err = h.run(t, cfg, newFakeClient())

	assert.ErrorIs(t, err, ErrEdgesNotMaterialized)
	assert.True(t, h.exists(t, graphstore.UsersInvolved, "1"))
}

func TestPruningRemovesExactlyUnconnectedAccounts(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3", "4"} {
		a := account(id)
		_, err := h.repo.AddAccount(ctx, &a)
		require.NoError(t, err)
		_, err = h.repo.AddInvolvedAccount(ctx, &a)
		require.NoError(t, err)
	}
	t1 := tweet(tweetSpec{id: "t1", author: "1", mentions: []string{"2"}})
	_, err := h.repo.AddMentionEdge(ctx, &t1, t1.Mentions()[0])
	require.NoError(t, err)
	orig := tweet(tweetSpec{id: "t2", author: "1"})
	rt := tweet(tweetSpec{id: "t3", author: "4", refs: []string{"t2"}})
	_, err = h.repo.AddRetweetEdge(ctx, &rt, &orig)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Steps = steps(false, false, false, true)
	summary, err := h.run(t, cfg, newFakeClient())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Stats.Pruned)
	assert.True(t, h.exists(t, graphstore.UsersInvolved, "1"))
	assert.True(t, h.exists(t, graphstore.UsersInvolved, "2"))
	assert.False(t, h.exists(t, graphstore.UsersInvolved, "3"))
	assert.True(t, h.exists(t, graphstore.UsersInvolved, "4"))
	assert.True(t, h.exists(t, graphstore.Users, "3"))
}

func TestNewRejectsBadWindow(t *testing.T) {
	cfg := testConfig()
	cfg.Keywords.DateFrom = "yesterday"
	_, err := New(cfg, newFakeClient(), newHarness().repo, nil)
	assert.Error(t, err)

	cfg.Steps.Timelines = false
	_, err = New(cfg, newFakeClient(), newHarness().repo, nil)
	assert.NoError(t, err)
}

func newCheckpoints(t *testing.T, cfg *config.Config) *checkpoint.Manager {
	t.Helper()
	mgr, err := checkpoint.NewManager(t.TempDir(), Fingerprint(cfg), logger.NewTestLogger())
	require.NoError(t, err)
	return mgr
}

func TestResumeSkipsCompletedPhases(t *testing.T) {
	h := newHarness()
	client := scenarioClient()
	cfg := testConfig()

	cfg.Steps = steps(true, true, false, false)
	_, err := h.run(t, cfg, client)
	require.NoError(t, err)
	resolveCalls := client.resolveCalls

	cfg.Steps = steps(true, true, true, true)
	mgr := newCheckpoints(t, cfg)
	cp, err := mgr.Create("run-1", Fingerprint(cfg))
	require.NoError(t, err)
	require.NoError(t, mgr.CompletePhase(cp, PhaseSeed))
	require.NoError(t, mgr.CompletePhase(cp, PhaseTimelines))

	summary, err := h.run(t, cfg, client, WithCheckpoints(mgr, true, false))
	require.NoError(t, err)

	assert.Equal(t, "run-1", summary.RunID)
	assert.True(t, summary.Resumed)
	assert.Equal(t, resolveCalls, client.resolveCalls)
	assert.True(t, summary.Phases[0].Skipped)
	assert.True(t, summary.Phases[1].Skipped)
	assert.False(t, summary.Phases[2].Skipped)
	assert.True(t, h.exists(t, graphstore.MentionRelationships, "ME1-2"))
	assert.False(t, mgr.Exists())
}

func TestResumeContinuesEdgeScanAtOffset(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	for _, id := range []string{"1", "2"} {
		a := account(id)
		_, err := h.repo.AddAccount(ctx, &a)
		require.NoError(t, err)
	}
	first := tweet(tweetSpec{id: "a", author: "1", mentions: []string{"2"}})
	second := tweet(tweetSpec{id: "b", author: "2", mentions: []string{"1"}})
	for _, tw := range []*models.Tweet{&first, &second} {
		_, err := h.repo.AddTweet(ctx, tw)
		require.NoError(t, err)
	}

	cfg := testConfig()
	cfg.Steps = steps(false, false, true, false)
	mgr := newCheckpoints(t, cfg)
	cp, err := mgr.Create("run-2", Fingerprint(cfg))
	require.NoError(t, err)
	require.NoError(t, mgr.UpdateEdgeOffset(cp, 1, 2))

	summary, err := h.run(t, cfg, newFakeClient(), WithCheckpoints(mgr, true, false))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Stats.TweetsAnalyzed)
	assert.False(t, h.exists(t, graphstore.MentionRelationships, "ME1-2"))
	assert.True(t, h.exists(t, graphstore.MentionRelationships, "ME2-1"))
}

func TestExistingCheckpointNeedsResumeOrRestart(t *testing.T) {
	h := newHarness()
	cfg := testConfig()
	mgr := newCheckpoints(t, cfg)
	_, err := mgr.Create("old", Fingerprint(cfg))
	require.NoError(t, err)

	_, err = h.run(t, cfg, scenarioClient(), WithCheckpoints(mgr, false, false))
	assert.ErrorIs(t, err, ErrCheckpointExists)

	summary, err := h.run(t, cfg, scenarioClient(), WithCheckpoints(mgr, false, true))
	require.NoError(t, err)
	assert.NotEqual(t, "old", summary.RunID)
	assert.False(t, summary.Resumed)

	backup, err := os.ReadFile(mgr.Path() + ".backup")
	require.NoError(t, err)
	assert.Contains(t, string(backup), `"old"`)
}

func TestCheckpointForOtherCrawlIsIgnored(t *testing.T) {
	h := newHarness()
	cfg := testConfig()
	mgr := newCheckpoints(t, cfg)
	cp, err := mgr.Create("other", "different-fingerprint")
	require.NoError(t, err)
	require.NoError(t, mgr.CompletePhase(cp, PhaseSeed))

	client := scenarioClient()
	summary, err := h.run(t, cfg, client, WithCheckpoints(mgr, true, false))
	require.NoError(t, err)
	assert.NotEqual(t, "other", summary.RunID)
	assert.Equal(t, 1, client.resolveCalls)
}

func TestCancelledRunKeepsCheckpoint(t *testing.T) {
	h := newHarness()
	cfg := testConfig()
	mgr := newCheckpoints(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := scenarioClient()
	client.onTimeline = func(string) { cancel() }

	orch, err := New(cfg, client, h.repo, h.log, WithCheckpoints(mgr, false, false))
	require.NoError(t, err)
	_, err = orch.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	a, _, err := h.repo.Account(context.Background(), "1")
	require.NoError(t, err)
	assert.False(t, a.Step2Performed)

	cp, err := mgr.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, []string{PhaseSeed}, cp.CompletedPhases)
	assert.Equal(t, orch.RunID(), cp.RunID)
}
