package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetgraph/pkg/graphstore"
	"tweetgraph/pkg/graphstore/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) graphstore.Store { return New() })
}

func TestScanKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, k := range []string{"c", "a", "b"} {
		_, err := s.Insert(ctx, graphstore.Tweets, graphstore.Document{Key: k, Data: []byte(`{"_key":"` + k + `"}`)})
		require.NoError(t, err)
	}
	require.NoError(t, s.Remove(ctx, graphstore.Tweets, "a"))

	it, err := s.ScanAll(ctx, graphstore.Tweets)
	require.NoError(t, err)
	docs, err := graphstore.Collect(it)
	require.NoError(t, err)

	var keys []string
	for _, d := range docs {
		keys = append(keys, d.Key)
	}
	assert.Equal(t, []string{"c", "b"}, keys)
}

func TestReturnedDocumentsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	data := []byte(`{"_key":"1"}`)
	_, err := s.Insert(ctx, graphstore.Users, graphstore.Document{Key: "1", Data: data})
	require.NoError(t, err)
	data[2] = 'X'

	got, _, err := s.Get(ctx, graphstore.Users, "1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"_key":"1"}`, string(got.Data))
}
