// Package logger provides the structured logging interface used across tweetgraph.
//
// It wraps zerolog. Console output is colored and human readable when stdout is a
// terminal; otherwise (or with format "json") one JSON object is written per line,
// which is what long unattended crawls should ship to a collector.
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("run_id", runID).InfoWithFields("phase finished", map[string]interface{}{
//	    "phase":    "timelines",
//	    "accounts": 312,
//	})
package logger
