package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetgraph/pkg/config"
	"tweetgraph/pkg/graphstore"
	"tweetgraph/pkg/graphstore/badgerstore"
	"tweetgraph/pkg/graphstore/memstore"
	"tweetgraph/pkg/graphstore/sqlitestore"
	"tweetgraph/pkg/logger"
)

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name string
		cfg  config.StoreConfig
		want interface{}
	}{
		{"memory", config.StoreConfig{Backend: config.BackendMemory}, &memstore.Store{}},
		{"badger", config.StoreConfig{Backend: config.BackendBadger, Path: filepath.Join(dir, "badger", "graph")}, &badgerstore.Store{}},
		{"sqlite", config.StoreConfig{Backend: config.BackendSQLite, Path: filepath.Join(dir, "sqlite", "graph.db")}, &sqlitestore.Store{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(ctx, tt.cfg, logger.NewTestLogger())
			require.NoError(t, err)
			defer store.Close()

			assert.IsType(t, tt.want, store)

			doc, err := graphstore.NewDocument(map[string]string{"_key": "1"})
			require.NoError(t, err)
			inserted, err := store.Insert(ctx, graphstore.Users, doc)
			require.NoError(t, err)
			assert.True(t, inserted)
		})
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Backend: "arangodb"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arangodb")
}

func TestOpenRequiresPathForFileBackends(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Backend: config.BackendBadger}, nil)
	assert.Error(t, err)
}

type countingRecorder map[string]int

func (r countingRecorder) AddDocuments(collection string, n int) {
	r[collection] += n
}

func TestInstrumentCountsNewDocuments(t *testing.T) {
	ctx := context.Background()
	rec := countingRecorder{}
	store := Instrument(memstore.New(), rec)

	a, err := graphstore.NewDocument(map[string]string{"_key": "a"})
	require.NoError(t, err)
	b, err := graphstore.NewDocument(map[string]string{"_key": "b"})
	require.NoError(t, err)

	_, err = store.Insert(ctx, graphstore.Tweets, a)
	require.NoError(t, err)
	_, err = store.Insert(ctx, graphstore.Tweets, a)
	require.NoError(t, err)
	require.NoError(t, store.Replace(ctx, graphstore.Tweets, a))
	require.NoError(t, store.Replace(ctx, graphstore.Tweets, b))

	assert.Equal(t, 2, rec["tweets"])

	n, err := store.Count(ctx, graphstore.Tweets)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestInstrumentWithoutRecorder(t *testing.T) {
	inner := memstore.New()
	assert.Same(t, graphstore.Store(inner), Instrument(inner, nil))
}
