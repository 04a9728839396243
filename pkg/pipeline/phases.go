package pipeline

import (
	"context"
	"fmt"

	"tweetgraph/pkg/errors"
	"tweetgraph/pkg/graph"
	"tweetgraph/pkg/logger"
	"tweetgraph/pkg/models"
)

func storeError(cause error, format string, args ...interface{}) error {
	return errors.Wrap(errors.ErrorTypeStore, cause, fmt.Sprintf(format, args...))
}

// seed resolves the configured accounts, stores them and every follower
func (o *Orchestrator) seed(ctx context.Context) error {
	log := o.log.WithField("phase", PhaseSeed)

	seeds, err := o.client.ResolveAccounts(ctx, o.usernames)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if len(seeds) == 0 {
		log.ErrorWithFields("Could not resolve any configured account, check the usernames", map[string]interface{}{
			"usernames": o.usernames,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSeedResolution, err)
		}
		return ErrSeedResolution
	}
	o.stats.SeedAccounts = len(seeds)
	log.InfoWithFields("Resolved configured accounts", map[string]interface{}{
		"resolved":  len(seeds),
		"requested": len(o.usernames),
	})

	seen := make(map[string]bool)
	o.accounts = o.accounts[:0]
	add := func(a *models.Account) error {
		inserted, err := o.repo.AddAccount(ctx, a)
		if err != nil {
			return storeError(err, "store account %s", a.ID)
		}
		if inserted {
			o.stats.AccountsDiscovered++
		}
		if !seen[a.ID] {
			seen[a.ID] = true
			o.accounts = append(o.accounts, *a)
		}
		return nil
	}

	for i := range seeds {
		if err := add(&seeds[i]); err != nil {
			return err
		}
	}

	for _, s := range seeds {
		followers, err := o.client.FetchFollowers(ctx, s.ID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			o.stats.FetchErrors++
			o.recorder.IncItemError(PhaseSeed)
			log.WithError(err).WarnWithFields("Follower list incomplete, keeping partial result", map[string]interface{}{
				"username": s.Username,
				"received": len(followers),
			})
		}

		for i := range followers {
			if err := add(&followers[i]); err != nil {
				return err
			}
		}
		log.InfoWithFields("Stored followers", map[string]interface{}{
			"username":       s.Username,
			"followers":      len(followers),
			"total_accounts": len(o.accounts),
		})
	}
	return nil
}

// loadAccounts reads the full account collection for a skipped seed phase
func (o *Orchestrator) loadAccounts(ctx context.Context) error {
	accounts, err := o.repo.AllAccounts(ctx)
	if err != nil {
		return storeError(err, "load accounts")
	}
	o.accounts = accounts
	o.log.InfoWithFields("Loaded accounts from store", map[string]interface{}{
		"accounts": len(accounts),
	})
	return nil
}

// timelines fetches the timeline of every account not yet processed and
// tags involved accounts and tweets
func (o *Orchestrator) timelines(ctx context.Context) error {
	log := o.log.WithField("phase", PhaseTimelines)
	prog := newProgress(PhaseTimelines, len(o.accounts), o.log, o.recorder)

	for _, a := range o.accounts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.timeline(ctx, log, a); err != nil {
			return err
		}
		prog.Step()
	}

	log.InfoWithFields("Timelines processed", map[string]interface{}{
		"fetched":           o.stats.TimelinesFetched,
		"already_processed": o.stats.TimelinesSkipped,
		"involved_accounts": len(o.involved),
		"involved_tweets":   len(o.involvedTweets),
	})
	return nil
}

func (o *Orchestrator) timeline(ctx context.Context, log logger.Logger, a models.Account) error {
	// the stored copy carries step2Performed from earlier runs
	stored, found, err := o.repo.Account(ctx, a.ID)
	if err != nil {
		return storeError(err, "load account %s", a.ID)
	}
	if !found {
		stored = &a
		if _, err := o.repo.AddAccount(ctx, stored); err != nil {
			return storeError(err, "store account %s", a.ID)
		}
	}
	if stored.Step2Performed {
		o.stats.TimelinesSkipped++
		log.DebugWithFields("Timeline already processed", map[string]interface{}{
			"username": stored.Username,
		})
		return nil
	}

	tweets, err := o.client.FetchTimeline(ctx, stored.ID, o.from, o.to)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		o.stats.FetchErrors++
		o.recorder.IncItemError(PhaseTimelines)
		log.WithError(err).WarnWithFields("Timeline incomplete, keeping partial result", map[string]interface{}{
			"username": stored.Username,
			"received": len(tweets),
		})
	}
	o.stats.TimelinesFetched++

	involved := false
	for i := range tweets {
		t := &tweets[i]
		inserted, err := o.repo.AddTweet(ctx, t)
		if err != nil {
			return storeError(err, "store tweet %s", t.ID)
		}
		if inserted {
			o.stats.TweetsStored++
		}

		if !t.MatchesAny(o.hashtags) {
			continue
		}
		involved = true
		if inserted, err = o.repo.AddInvolvedTweet(ctx, t); err != nil {
			return storeError(err, "store involved tweet %s", t.ID)
		}
		if inserted {
			o.stats.InvolvedTweets++
			o.involvedTweets = append(o.involvedTweets, *t)
		}
	}
	log.DebugWithFields("Timeline fetched", map[string]interface{}{
		"username": stored.Username,
		"tweets":   len(tweets),
		"involved": involved,
	})

	if involved {
		inserted, err := o.repo.AddInvolvedAccount(ctx, stored)
		if err != nil {
			return storeError(err, "store involved account %s", stored.ID)
		}
		if inserted {
			o.stats.InvolvedAccounts++
			o.involved = append(o.involved, *stored)
		}
	}

	if err := o.repo.MarkTimelineDone(ctx, stored); err != nil {
		return storeError(err, "mark account %s", stored.ID)
	}
	return nil
}

// loadInvolved reads the involved collections for a skipped timeline phase
func (o *Orchestrator) loadInvolved(ctx context.Context) error {
	accounts, err := o.repo.InvolvedAccounts(ctx)
	if err != nil {
		return storeError(err, "load involved accounts")
	}
	tweets, err := o.repo.InvolvedTweets(ctx)
	if err != nil {
		return storeError(err, "load involved tweets")
	}
	o.involved, o.involvedTweets = accounts, tweets
	o.log.InfoWithFields("Loaded involved subgraph from store", map[string]interface{}{
		"involved_accounts": len(accounts),
		"involved_tweets":   len(tweets),
	})
	return nil
}

// edges scans the full tweet collection in batches and builds mention and
// retweet edges. A tweet that fails is logged and skipped.
func (o *Orchestrator) edges(ctx context.Context) error {
	log := o.log.WithField("phase", PhaseEdges)

	total, err := o.repo.CountTweets(ctx)
	if err != nil {
		return storeError(err, "count tweets")
	}

	offset := 0
	if o.cp != nil && o.cp.EdgeOffset > 0 && o.cp.EdgeOffset <= total {
		offset = o.cp.EdgeOffset
		log.InfoWithFields("Resuming edge analysis", map[string]interface{}{"offset": offset})
	}
	log.InfoWithFields("Tweets to analyze", map[string]interface{}{"total": total})

	prog := newProgress(PhaseEdges, total, o.log, o.recorder)
	prog.Advance(offset)

	for offset < total {
		batch, err := o.repo.TweetBatch(ctx, offset, o.batchSize)
		if err != nil {
			return storeError(err, "read tweets at offset %d", offset)
		}
		if len(batch) == 0 {
			break
		}
		log.InfoWithFields("Analyzing tweet batch", map[string]interface{}{
			"offset": offset,
			"size":   len(batch),
		})

		for _, entry := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := entry.Err
			if err == nil {
				err = o.analyzeTweet(ctx, entry.Tweet)
			}
			if err != nil {
				o.stats.TweetErrors++
				o.recorder.IncItemError(PhaseEdges)
				log.WithError(err).WarnWithFields("Tweet analysis failed, continuing", map[string]interface{}{
					"offset": offset,
					"key":    entry.Key,
				})
			}
			o.stats.TweetsAnalyzed++
			offset++
			prog.Step()
		}

		if o.cp != nil {
			if err := o.checkpoints.UpdateEdgeOffset(o.cp, offset, total); err != nil {
				log.WithError(err).Warn("Failed to save checkpoint")
			}
		}
	}

	o.edgesBuilt = true
	log.InfoWithFields("Edges built", map[string]interface{}{
		"mention_edges":          o.stats.MentionEdges,
		"involved_mention_edges": o.stats.InvolvedMentionEdges,
		"retweet_edges":          o.stats.RetweetEdges,
		"involved_retweet_edges": o.stats.InvolvedRetweetEdges,
		"failed_tweets":          o.stats.TweetErrors,
	})
	return nil
}

// analyzeTweet writes the mention edges and retweet edges of one tweet
func (o *Orchestrator) analyzeTweet(ctx context.Context, t *models.Tweet) error {
	if t.AuthorID == "" {
		return fmt.Errorf("tweet %s has no author", t.ID)
	}

	for _, m := range t.Mentions() {
		w, err := o.repo.AddMentionEdge(ctx, t, m)
		if err != nil {
			return err
		}
		o.countEdge(w, &o.stats.InvolvedMentionEdges, &o.stats.MentionEdges)
	}

	for _, ref := range t.ReferencedTweets {
		original, found, err := o.repo.Tweet(ctx, ref.ID)
		if err != nil {
			return err
		}
		if !found {
			o.stats.UnresolvedReferences++
			continue
		}
		w, err := o.repo.AddRetweetEdge(ctx, t, original)
		if err != nil {
			return err
		}
		o.countEdge(w, &o.stats.InvolvedRetweetEdges, &o.stats.RetweetEdges)
	}
	return nil
}

func (o *Orchestrator) countEdge(w graph.EdgeWrite, involved, full *int) {
	if w.Involved {
		*involved++
	}
	if w.Full {
		*full++
	}
}

// markEdgesFromCheckpoint treats edges as built when an earlier run of this
// crawl completed the edge phase
func (o *Orchestrator) markEdgesFromCheckpoint(context.Context) error {
	if o.cp != nil && o.cp.IsPhaseComplete(PhaseEdges) {
		o.edgesBuilt = true
	}
	return nil
}

// prune removes involved accounts that no involved edge touches
func (o *Orchestrator) prune(ctx context.Context) error {
	log := o.log.WithField("phase", PhasePruning)

	if !o.edgesBuilt {
		n, err := o.repo.InvolvedEdgeCount(ctx)
		if err != nil {
			return storeError(err, "count involved edges")
		}
		if n == 0 {
			return ErrEdgesNotMaterialized
		}
	}

	// the collection also holds accounts tagged by earlier runs
	accounts, err := o.repo.InvolvedAccounts(ctx)
	if err != nil {
		return storeError(err, "load involved accounts")
	}

	prog := newProgress(PhasePruning, len(accounts), o.log, o.recorder)
	for _, a := range accounts {
		if err := ctx.Err(); err != nil {
			return err
		}
		degree, err := o.repo.InvolvedDegree(ctx, a.ID)
		if err != nil {
			return storeError(err, "degree of %s", a.ID)
		}
		if degree == 0 {
			if err := o.repo.RemoveInvolvedAccount(ctx, a.ID); err != nil {
				return storeError(err, "remove involved account %s", a.ID)
			}
			o.stats.Pruned++
			log.DebugWithFields("Removed involved account without edges", map[string]interface{}{
				"username": a.Username,
			})
		}
		prog.Step()
	}

	log.InfoWithFields("Involved accounts pruned", map[string]interface{}{
		"checked": len(accounts),
		"removed": o.stats.Pruned,
	})
	return nil
}
