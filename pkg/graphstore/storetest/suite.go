// Package storetest holds the behavioural contract every graphstore backend
// must satisfy.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetgraph/pkg/graphstore"
)

// Factory opens an empty store. The suite closes it.
type Factory func(t *testing.T) graphstore.Store

type doc struct {
	Key  string `json:"_key"`
	From string `json:"_from,omitempty"`
	To   string `json:"_to,omitempty"`
	N    int    `json:"n"`
}

func mustDoc(t *testing.T, v doc) graphstore.Document {
	t.Helper()
	d, err := graphstore.NewDocument(v)
	require.NoError(t, err)
	return d
}

func decode(t *testing.T, d graphstore.Document) doc {
	t.Helper()
	var v doc
	require.NoError(t, d.Decode(&v))
	return v
}

// Run executes the conformance suite against stores produced by open
func Run(t *testing.T, open Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s graphstore.Store)
	}{
		{"InsertNeverOverwrites", testInsertNeverOverwrites},
		{"ReplaceOverwrites", testReplaceOverwrites},
		{"GetMissing", testGetMissing},
		{"CollectionsAreIsolated", testCollectionsAreIsolated},
		{"RemoveAndCount", testRemoveAndCount},
		{"ScanAll", testScanAll},
		{"ScanPageCoversCollection", testScanPageCoversCollection},
		{"ScanByFilter", testScanByFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			tt.fn(t, s)
		})
	}
}

func testInsertNeverOverwrites(t *testing.T, s graphstore.Store) {
	ctx := context.Background()

	inserted, err := s.Insert(ctx, graphstore.Users, mustDoc(t, doc{Key: "1", N: 1}))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.Insert(ctx, graphstore.Users, mustDoc(t, doc{Key: "1", N: 2}))
	require.NoError(t, err)
	assert.False(t, inserted)

	got, found, err := s.Get(ctx, graphstore.Users, "1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, decode(t, got).N)

	exists, err := s.Exists(ctx, graphstore.Users, "1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func testReplaceOverwrites(t *testing.T, s graphstore.Store) {
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, graphstore.Users, mustDoc(t, doc{Key: "1", N: 1})))
	require.NoError(t, s.Replace(ctx, graphstore.Users, mustDoc(t, doc{Key: "1", N: 7})))

	got, found, err := s.Get(ctx, graphstore.Users, "1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1", got.Key)
	assert.Equal(t, 7, decode(t, got).N)

	n, err := s.Count(ctx, graphstore.Users)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testGetMissing(t *testing.T, s graphstore.Store) {
	ctx := context.Background()

	_, found, err := s.Get(ctx, graphstore.Tweets, "nope")
	require.NoError(t, err)
	assert.False(t, found)

	exists, err := s.Exists(ctx, graphstore.Tweets, "nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func testCollectionsAreIsolated(t *testing.T, s graphstore.Store) {
	ctx := context.Background()

	_, err := s.Insert(ctx, graphstore.Users, mustDoc(t, doc{Key: "1"}))
	require.NoError(t, err)

	exists, err := s.Exists(ctx, graphstore.UsersInvolved, "1")
	require.NoError(t, err)
	assert.False(t, exists)

	inserted, err := s.Insert(ctx, graphstore.UsersInvolved, mustDoc(t, doc{Key: "1"}))
	require.NoError(t, err)
	assert.True(t, inserted)

	require.NoError(t, s.Remove(ctx, graphstore.UsersInvolved, "1"))

	exists, err = s.Exists(ctx, graphstore.Users, "1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func testRemoveAndCount(t *testing.T, s graphstore.Store) {
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Insert(ctx, graphstore.UsersInvolved, mustDoc(t, doc{Key: fmt.Sprint(i)}))
		require.NoError(t, err)
	}

	require.NoError(t, s.Remove(ctx, graphstore.UsersInvolved, "3"))
	require.NoError(t, s.Remove(ctx, graphstore.UsersInvolved, "missing"))

	n, err := s.Count(ctx, graphstore.UsersInvolved)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	exists, err := s.Exists(ctx, graphstore.UsersInvolved, "3")
	require.NoError(t, err)
	assert.False(t, exists)

	n, err = s.Count(ctx, graphstore.RetweetRelationships)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func testScanAll(t *testing.T, s graphstore.Store) {
	ctx := context.Background()

	want := map[string]bool{}
	for i := 0; i < 12; i++ {
		key := fmt.Sprintf("u%02d", i)
		want[key] = true
		_, err := s.Insert(ctx, graphstore.Users, mustDoc(t, doc{Key: key, N: i}))
		require.NoError(t, err)
	}
	_, err := s.Insert(ctx, graphstore.Tweets, mustDoc(t, doc{Key: "t1"}))
	require.NoError(t, err)

	it, err := s.ScanAll(ctx, graphstore.Users)
	require.NoError(t, err)
	docs, err := graphstore.Collect(it)
	require.NoError(t, err)

	got := map[string]bool{}
	for _, d := range docs {
		got[d.Key] = true
		assert.Equal(t, d.Key, decode(t, d).Key)
	}
	assert.Equal(t, want, got)
}

func testScanPageCoversCollection(t *testing.T, s graphstore.Store) {
	ctx := context.Background()

	const total = 23
	for i := 0; i < total; i++ {
		_, err := s.Insert(ctx, graphstore.Tweets, mustDoc(t, doc{Key: fmt.Sprintf("t%03d", i)}))
		require.NoError(t, err)
	}

	seen := map[string]int{}
	pages := 0
	for offset := 0; offset < total; offset += 10 {
		it, err := s.ScanPage(ctx, graphstore.Tweets, offset, 10)
		require.NoError(t, err)
		docs, err := graphstore.Collect(it)
		require.NoError(t, err)
		pages++
		if offset+10 <= total {
			assert.Len(t, docs, 10)
		} else {
			assert.Len(t, docs, total-offset)
		}
		for _, d := range docs {
			seen[d.Key]++
		}
	}

	assert.Equal(t, 3, pages)
	assert.Len(t, seen, total)
	for k, n := range seen {
		assert.Equal(t, 1, n, "document %s seen more than once", k)
	}

	it, err := s.ScanPage(ctx, graphstore.Tweets, total, 10)
	require.NoError(t, err)
	docs, err := graphstore.Collect(it)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func testScanByFilter(t *testing.T, s graphstore.Store) {
	ctx := context.Background()
	coll := graphstore.MentionRelationshipsInvolved

	edges := []doc{
		{Key: "ME1-2", From: "users-involved/1", To: "users-involved/2"},
		{Key: "ME2-3", From: "users-involved/2", To: "users-involved/3"},
		{Key: "ME3-4", From: "users-involved/3", To: "users-involved/4"},
		{Key: "ME10-4", From: "users-involved/10", To: "users-involved/4"},
	}
	for _, e := range edges {
		_, err := s.Insert(ctx, coll, mustDoc(t, e))
		require.NoError(t, err)
	}

	count := func(ref string) int {
		it, err := s.ScanByFilter(ctx, coll, graphstore.EndpointFilter(ref))
		require.NoError(t, err)
		n, err := graphstore.CountMatches(it)
		require.NoError(t, err)
		return n
	}

	assert.Equal(t, 1, count("users-involved/1"))
	assert.Equal(t, 2, count("users-involved/2"))
	assert.Equal(t, 2, count("users-involved/4"))
	assert.Equal(t, 0, count("users-involved/5"))
	assert.Equal(t, 0, count("users/1"))

	it, err := s.ScanByFilter(ctx, coll, graphstore.Filter{{Field: "_key", Value: "ME2-3"}})
	require.NoError(t, err)
	docs, err := graphstore.Collect(it)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "users-involved/3", decode(t, docs[0]).To)
}
