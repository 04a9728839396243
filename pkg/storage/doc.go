// Package storage opens the graph store backend selected in the run
// configuration.
//
// Supported backends:
//   - memory: process-local maps, lost on exit
//   - badger: embedded key-value store in a directory (default)
//   - sqlite: a single database file
//   - postgres: a shared server reached through a DSN
//
// Open creates the data directory for file backed stores. Instrument wraps
// any store so that newly written documents are reported to a recorder.
//
// Usage:
//
//	store, err := storage.Open(ctx, cfg.Store, log)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
package storage
