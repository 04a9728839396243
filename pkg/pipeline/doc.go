// Package pipeline runs a crawl as four sequential phases over one graph
// store.
//
// Phases:
//
//  1. seed: resolve the configured usernames and store them with all of
//     their followers.
//  2. timelines: fetch the crawl-window timeline of every account that has
//     not been processed yet. Tweets carrying a configured hashtag make
//     their author involved. Each account is marked once its timeline is
//     stored, so an interrupted run can be re-entered.
//  3. edges: scan the whole tweet collection in batches and write mention
//     and retweet edges into the full graph and the involved subgraph.
//  4. pruning: remove involved accounts that no involved edge touches.
//
// A disabled phase reads what it would have produced from the store.
// Pruning refuses to run when edges were neither built in this run nor
// present from an earlier one.
//
// Only an unresolvable seed list stops the crawl. A failed page ends that
// pagination loop and keeps its partial result; a tweet that cannot be
// analyzed is logged and skipped.
//
// Usage:
//
//	orch, err := pipeline.New(cfg, client, graph.NewRepository(store, log), log,
//	    pipeline.WithRecorder(m),
//	    pipeline.WithCheckpoints(mgr, resume, false),
//	)
//	if err != nil {
//	    return err
//	}
//	summary, err := orch.Run(ctx)
package pipeline
