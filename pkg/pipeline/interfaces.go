package pipeline

import (
	"context"
	"time"

	"tweetgraph/pkg/models"
)

// CrawlClient defines the remote API operations the pipeline needs
type CrawlClient interface {
	ResolveAccounts(ctx context.Context, usernames []string) ([]models.Account, error)
	FetchFollowers(ctx context.Context, userID string) ([]models.Account, error)
	FetchTimeline(ctx context.Context, userID string, from, to time.Time) ([]models.Tweet, error)
}

// Recorder receives phase timings, progress and skipped items
type Recorder interface {
	ObservePhase(phase string, elapsed time.Duration)
	SetProgress(phase string, percent int)
	IncItemError(phase string)
}

type nopRecorder struct{}

func (nopRecorder) ObservePhase(string, time.Duration) {}
func (nopRecorder) SetProgress(string, int)            {}
func (nopRecorder) IncItemError(string)                {}
