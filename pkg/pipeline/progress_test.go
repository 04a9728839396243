package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tweetgraph/pkg/logger"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		processed, total, want int
	}{
		{0, 10, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 200, 1},
		{1, 400, 0},
		{10, 10, 100},
		{0, 0, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.processed, tt.total), "%d/%d", tt.processed, tt.total)
	}
}

func TestProgressEmitsOnlyIncreases(t *testing.T) {
	log := logger.NewTestLogger()
	rec := newFakeRecorder()
	p := newProgress(PhaseEdges, 400, log, rec)

	for i := 0; i < 400; i++ {
		p.Step()
	}

	msgs := log.FindMessages("Progress")
	assert.Len(t, msgs, 100)
	assert.Equal(t, 1, msgs[0].Field("percent"))
	assert.Equal(t, 2, msgs[0].Field("processed"))
	assert.Equal(t, 100, msgs[len(msgs)-1].Field("percent"))
	assert.Equal(t, 400, p.Processed())
	assert.Equal(t, 100, rec.progress[PhaseEdges])
}

func TestProgressAdvanceFromOffset(t *testing.T) {
	log := logger.NewTestLogger()
	p := newProgress(PhaseEdges, 10, log, newFakeRecorder())

	p.Advance(5)
	p.Step()

	msgs := log.FindMessages("Progress")
	assert.Len(t, msgs, 2)
	assert.Equal(t, 50, msgs[0].Field("percent"))
	assert.Equal(t, 60, msgs[1].Field("percent"))
}
