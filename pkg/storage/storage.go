package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"tweetgraph/pkg/config"
	"tweetgraph/pkg/graphstore"
	"tweetgraph/pkg/graphstore/badgerstore"
	"tweetgraph/pkg/graphstore/memstore"
	"tweetgraph/pkg/graphstore/pgstore"
	"tweetgraph/pkg/graphstore/sqlitestore"
	"tweetgraph/pkg/logger"
)

// Open returns the store backend named by cfg.Backend
func Open(ctx context.Context, cfg config.StoreConfig, log logger.Logger) (graphstore.Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithField("backend", cfg.Backend)

	var (
		store graphstore.Store
		err   error
	)

	switch cfg.Backend {
	case config.BackendMemory:
		store = memstore.New()
	case config.BackendBadger:
		if err = ensureDir(cfg.Path); err != nil {
			return nil, err
		}
		bcfg := badgerstore.DefaultConfig(cfg.Path)
		bcfg.SyncWrites = cfg.SyncWrites
		bcfg.Logger = log
		store, err = badgerstore.Open(bcfg)
	case config.BackendSQLite:
		if cfg.Path != ":memory:" {
			if err = ensureDir(filepath.Dir(cfg.Path)); err != nil {
				return nil, err
			}
		}
		store, err = sqlitestore.Open(cfg.Path)
	case config.BackendPostgres:
		store, err = pgstore.Open(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Backend, err)
	}

	log.InfoWithFields("Graph store opened", map[string]interface{}{
		"path": cfg.Path,
	})
	return store, nil
}

// ensureDir creates the directory a file backed store lives in
func ensureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("store path is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	return nil
}

// DocumentRecorder receives the number of documents newly written to a
// collection
type DocumentRecorder interface {
	AddDocuments(collection string, n int)
}

// Instrument wraps store so successful inserts are reported to rec
func Instrument(store graphstore.Store, rec DocumentRecorder) graphstore.Store {
	if rec == nil {
		return store
	}
	return &instrumented{Store: store, rec: rec}
}

type instrumented struct {
	graphstore.Store
	rec DocumentRecorder
}

func (s *instrumented) Insert(ctx context.Context, coll graphstore.Collection, doc graphstore.Document) (bool, error) {
	inserted, err := s.Store.Insert(ctx, coll, doc)
	if err == nil && inserted {
		s.rec.AddDocuments(string(coll), 1)
	}
	return inserted, err
}

func (s *instrumented) Replace(ctx context.Context, coll graphstore.Collection, doc graphstore.Document) error {
	exists, err := s.Store.Exists(ctx, coll, doc.Key)
	if err != nil {
		return err
	}
	if err := s.Store.Replace(ctx, coll, doc); err != nil {
		return err
	}
	if !exists {
		s.rec.AddDocuments(string(coll), 1)
	}
	return nil
}
