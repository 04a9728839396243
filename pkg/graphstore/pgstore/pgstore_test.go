package pgstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"tweetgraph/pkg/graphstore"
	"tweetgraph/pkg/graphstore/storetest"
)

// Runs only when TWEETGRAPH_TEST_POSTGRES_DSN points at a scratch database.
// The table is truncated before every subtest.
func TestConformance(t *testing.T) {
	dsn := os.Getenv("TWEETGRAPH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TWEETGRAPH_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) graphstore.Store {
		ctx := context.Background()
		s, err := Open(ctx, dsn)
		require.NoError(t, err)
		require.NoError(t, s.Truncate(ctx))
		return s
	})
}

func TestOpenRejectsBadDSN(t *testing.T) {
	_, err := Open(context.Background(), "postgres://%zz")
	require.Error(t, err)
}
