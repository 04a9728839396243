package pipeline

import (
	"math"

	"tweetgraph/pkg/logger"
)

// progress reports percent-complete for one phase. A percentage is emitted
// only when it is higher than the last one emitted.
type progress struct {
	phase     string
	total     int
	processed int
	last      int
	log       logger.Logger
	rec       Recorder
}

func newProgress(phase string, total int, log logger.Logger, rec Recorder) *progress {
	return &progress{phase: phase, total: total, log: log, rec: rec}
}

// Percent returns round(processed / total * 100). An empty phase is complete.
func Percent(processed, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(processed) / float64(total) * 100))
}

// Step counts one processed item
func (p *progress) Step() {
	p.Advance(1)
}

// Advance counts n processed items
func (p *progress) Advance(n int) {
	p.processed += n
	pct := Percent(p.processed, p.total)
	if pct <= p.last {
		return
	}
	p.last = pct
	logger.LogProgress(p.log, p.phase, p.processed, p.total, pct)
	p.rec.SetProgress(p.phase, pct)
}

// Processed returns the number of items counted so far
func (p *progress) Processed() int {
	return p.processed
}
