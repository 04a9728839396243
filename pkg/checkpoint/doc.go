// Package checkpoint saves crawl progress so an interrupted run can resume.
//
// A checkpoint records which pipeline phases completed and how far the
// edge scan got. Files are keyed by a fingerprint of the crawl inputs, so
// a run with different accounts, hashtags or dates never resumes another
// run's state. Checkpoints are stored in the configured directory or in
// the platform data directory:
//   - Linux: ~/.local/share/tweetgraph/checkpoints/
//   - macOS: ~/Library/Application Support/tweetgraph/checkpoints/
//   - Windows: %APPDATA%/tweetgraph/checkpoints/
//
// Saves go through a temporary file and a rename.
package checkpoint
