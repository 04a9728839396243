// Package graph maps crawl entities onto the eight collections of a
// graphstore.Store and enforces the write rules of the full graph and the
// involved subgraph.
package graph

import (
	"context"
	"fmt"

	"tweetgraph/pkg/graphstore"
	"tweetgraph/pkg/logger"
	"tweetgraph/pkg/models"
)

// Repository is a typed view over a Store
type Repository struct {
	store graphstore.Store
	log   logger.Logger
}

// NewRepository wraps store. A nil logger discards messages.
func NewRepository(store graphstore.Store, log logger.Logger) *Repository {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Repository{store: store, log: log}
}

// Store returns the underlying store
func (r *Repository) Store() graphstore.Store {
	return r.store
}

func (r *Repository) insert(ctx context.Context, coll graphstore.Collection, v interface{}) (bool, error) {
	doc, err := graphstore.NewDocument(v)
	if err != nil {
		return false, err
	}
	inserted, err := r.store.Insert(ctx, coll, doc)
	if err != nil {
		return false, err
	}
	if inserted {
		r.log.DebugWithFields("document saved", map[string]interface{}{"collection": string(coll), "key": doc.Key})
	} else {
		r.log.DebugWithFields("document already exists", map[string]interface{}{"collection": string(coll), "key": doc.Key})
	}
	return inserted, nil
}

func (r *Repository) get(ctx context.Context, coll graphstore.Collection, key string, v interface{}) (bool, error) {
	doc, found, err := r.store.Get(ctx, coll, key)
	if err != nil || !found {
		return false, err
	}
	return true, doc.Decode(v)
}

// AddAccount stores a in the full account collection unless it is already
// there. Existing accounts are never overwritten.
func (r *Repository) AddAccount(ctx context.Context, a *models.Account) (bool, error) {
	a.Key = a.ID
	return r.insert(ctx, graphstore.Users, a)
}

// AddInvolvedAccount copies a into the involved account collection
func (r *Repository) AddInvolvedAccount(ctx context.Context, a *models.Account) (bool, error) {
	a.Key = a.ID
	return r.insert(ctx, graphstore.UsersInvolved, a)
}

// MarkTimelineDone sets step2Performed on a and writes it back over the
// stored account.
func (r *Repository) MarkTimelineDone(ctx context.Context, a *models.Account) error {
	a.Key = a.ID
	a.Step2Performed = true
	doc, err := graphstore.NewDocument(a)
	if err != nil {
		return err
	}
	return r.store.Replace(ctx, graphstore.Users, doc)
}

// Account loads an account from the full account collection
func (r *Repository) Account(ctx context.Context, id string) (*models.Account, bool, error) {
	var a models.Account
	found, err := r.get(ctx, graphstore.Users, id, &a)
	if err != nil || !found {
		return nil, false, err
	}
	return &a, true, nil
}

// AccountExists reports whether id is in the full account collection
func (r *Repository) AccountExists(ctx context.Context, id string) (bool, error) {
	return r.store.Exists(ctx, graphstore.Users, id)
}

// InvolvedExists reports whether id is in the involved account collection
func (r *Repository) InvolvedExists(ctx context.Context, id string) (bool, error) {
	return r.store.Exists(ctx, graphstore.UsersInvolved, id)
}

// RemoveInvolvedAccount drops id from the involved account collection. The
// full account collection is left untouched.
func (r *Repository) RemoveInvolvedAccount(ctx context.Context, id string) error {
	return r.store.Remove(ctx, graphstore.UsersInvolved, id)
}

// AddTweet stores t in the full tweet collection unless it is already there
func (r *Repository) AddTweet(ctx context.Context, t *models.Tweet) (bool, error) {
	t.Key = t.ID
	return r.insert(ctx, graphstore.Tweets, t)
}

// AddInvolvedTweet copies t into the involved tweet collection
func (r *Repository) AddInvolvedTweet(ctx context.Context, t *models.Tweet) (bool, error) {
	t.Key = t.ID
	return r.insert(ctx, graphstore.TweetsInvolved, t)
}

// Tweet loads a tweet from the full tweet collection
func (r *Repository) Tweet(ctx context.Context, id string) (*models.Tweet, bool, error) {
	var t models.Tweet
	found, err := r.get(ctx, graphstore.Tweets, id, &t)
	if err != nil || !found {
		return nil, false, err
	}
	return &t, true, nil
}

// EdgeWrite reports which of the two edge collections received a new edge
type EdgeWrite struct {
	Involved bool
	Full     bool
}

// addEdge applies the dual-graph rule for an edge fromID -> toID. The
// involved edge is written only when both endpoints are involved accounts;
// the full edge when that held or toID is a known account. build returns the
// edge document with endpoints in the given account collection.
func (r *Repository) addEdge(ctx context.Context, fromID, toID string, involvedColl, fullColl graphstore.Collection, build func(accounts string) interface{}) (EdgeWrite, error) {
	var w EdgeWrite

	involved, err := r.InvolvedExists(ctx, fromID)
	if err != nil {
		return w, err
	}
	if involved {
		if involved, err = r.InvolvedExists(ctx, toID); err != nil {
			return w, err
		}
	}
	if involved {
		if w.Involved, err = r.insert(ctx, involvedColl, build(string(graphstore.UsersInvolved))); err != nil {
			return w, fmt.Errorf("write %s: %w", involvedColl, err)
		}
	}

	full := involved
	if !full {
		if full, err = r.AccountExists(ctx, toID); err != nil {
			return w, err
		}
	}
	if full {
		if w.Full, err = r.insert(ctx, fullColl, build(string(graphstore.Users))); err != nil {
			return w, fmt.Errorf("write %s: %w", fullColl, err)
		}
	}
	return w, nil
}

// AddMentionEdge records that t's author mentioned m
func (r *Repository) AddMentionEdge(ctx context.Context, t *models.Tweet, m models.Mention) (EdgeWrite, error) {
	return r.addEdge(ctx, t.AuthorID, m.ID,
		graphstore.MentionRelationshipsInvolved, graphstore.MentionRelationships,
		func(accounts string) interface{} { return models.NewMentionEdge(accounts, t, m) })
}

// AddRetweetEdge records that t's author referenced original
func (r *Repository) AddRetweetEdge(ctx context.Context, t, original *models.Tweet) (EdgeWrite, error) {
	return r.addEdge(ctx, t.AuthorID, original.AuthorID,
		graphstore.RetweetRelationshipsInvolved, graphstore.RetweetRelationships,
		func(accounts string) interface{} { return models.NewRetweetEdge(accounts, t, original) })
}

// InvolvedDegree counts involved mention and retweet edges that start or end
// at account id.
func (r *Repository) InvolvedDegree(ctx context.Context, id string) (int, error) {
	filter := graphstore.EndpointFilter(models.VertexRef(string(graphstore.UsersInvolved), id))
	degree := 0
	for _, coll := range []graphstore.Collection{graphstore.MentionRelationshipsInvolved, graphstore.RetweetRelationshipsInvolved} {
		it, err := r.store.ScanByFilter(ctx, coll, filter)
		if err != nil {
			return 0, err
		}
		n, err := graphstore.CountMatches(it)
		if err != nil {
			return 0, err
		}
		degree += n
	}
	return degree, nil
}

// InvolvedEdgeCount is the total size of both involved edge collections
func (r *Repository) InvolvedEdgeCount(ctx context.Context) (int, error) {
	total := 0
	for _, coll := range []graphstore.Collection{graphstore.MentionRelationshipsInvolved, graphstore.RetweetRelationshipsInvolved} {
		n, err := r.store.Count(ctx, coll)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func decodeAll[T any](ctx context.Context, store graphstore.Store, coll graphstore.Collection) ([]T, error) {
	it, err := store.ScanAll(ctx, coll)
	if err != nil {
		return nil, err
	}
	docs, err := graphstore.Collect(it)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// AllAccounts loads the full account collection
func (r *Repository) AllAccounts(ctx context.Context) ([]models.Account, error) {
	return decodeAll[models.Account](ctx, r.store, graphstore.Users)
}

// InvolvedAccounts loads the involved account collection
func (r *Repository) InvolvedAccounts(ctx context.Context) ([]models.Account, error) {
	return decodeAll[models.Account](ctx, r.store, graphstore.UsersInvolved)
}

// InvolvedTweets loads the involved tweet collection
func (r *Repository) InvolvedTweets(ctx context.Context) ([]models.Tweet, error) {
	return decodeAll[models.Tweet](ctx, r.store, graphstore.TweetsInvolved)
}

// CountTweets returns the size of the full tweet collection
func (r *Repository) CountTweets(ctx context.Context) (int, error) {
	return r.store.Count(ctx, graphstore.Tweets)
}

// TweetEntry is one element of a tweet batch. Err is set when the stored
// document could not be decoded; the rest of the batch is still usable.
type TweetEntry struct {
	Key   string
	Tweet *models.Tweet
	Err   error
}

// TweetBatch reads up to limit tweets starting at offset
func (r *Repository) TweetBatch(ctx context.Context, offset, limit int) ([]TweetEntry, error) {
	it, err := r.store.ScanPage(ctx, graphstore.Tweets, offset, limit)
	if err != nil {
		return nil, err
	}
	docs, err := graphstore.Collect(it)
	if err != nil {
		return nil, err
	}
	entries := make([]TweetEntry, 0, len(docs))
	for _, d := range docs {
		e := TweetEntry{Key: d.Key}
		var t models.Tweet
		if e.Err = d.Decode(&t); e.Err == nil {
			e.Tweet = &t
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Counts maps each collection to its document count
type Counts map[graphstore.Collection]int

// Summary counts every collection
func (r *Repository) Summary(ctx context.Context) (Counts, error) {
	counts := make(Counts, len(graphstore.Collections))
	for _, coll := range graphstore.Collections {
		n, err := r.store.Count(ctx, coll)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", coll, err)
		}
		counts[coll] = n
	}
	return counts, nil
}
