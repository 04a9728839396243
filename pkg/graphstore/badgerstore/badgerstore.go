// Package badgerstore is the embedded graphstore.Store backed by BadgerDB.
// It is the default backend: a crawl directory is self-contained and can be
// copied between machines.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"tweetgraph/pkg/graphstore"
	"tweetgraph/pkg/logger"
)

// Config holds BadgerDB settings
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM
	InMemory bool

	// SyncWrites fsyncs every commit
	SyncWrites bool

	// Logger receives BadgerDB's own messages. Nil silences them.
	Logger logger.Logger

	// GCInterval is how often value log garbage collection runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum discardable fraction that triggers a rewrite
	GCDiscardRatio float64
}

// DefaultConfig returns settings for an on-disk database at path
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     false,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns settings for a throwaway database
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts logger.Logger to badger.Logger. Badger's info output
// is noisy, so it is demoted to debug.
type badgerLogger struct {
	log logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

// Store implements graphstore.Store on BadgerDB. Keys are laid out as
// "<collection>\x00<key>" so each collection is a contiguous prefix.
type Store struct {
	db     *badger.DB
	stop   chan struct{}
	wg     sync.WaitGroup
	closed sync.Once
}

var _ graphstore.Store = (*Store)(nil)

// Open opens (or creates) a database
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("badgerstore: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{log: cfg.Logger.WithField("component", "badger")})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}

	s := &Store{db: db, stop: make(chan struct{})}
	if !cfg.InMemory && cfg.GCInterval > 0 {
		s.wg.Add(1)
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			// ErrNoRewrite just means there was nothing worth collecting
			for s.db.RunValueLogGC(ratio) == nil {
			}
		}
	}
}

func prefix(coll graphstore.Collection) []byte {
	return append([]byte(coll), 0)
}

func dbKey(coll graphstore.Collection, key string) []byte {
	return append(prefix(coll), key...)
}

func (s *Store) Exists(ctx context.Context, coll graphstore.Collection, key string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(dbKey(coll, key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("badgerstore: exists %s/%s: %w", coll, key, err)
	}
	return true, nil
}

func (s *Store) Get(ctx context.Context, coll graphstore.Collection, key string) (graphstore.Document, bool, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(coll, key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return graphstore.Document{}, false, nil
	}
	if err != nil {
		return graphstore.Document{}, false, fmt.Errorf("badgerstore: get %s/%s: %w", coll, key, err)
	}
	return graphstore.Document{Key: key, Data: data}, true, nil
}

func (s *Store) Insert(ctx context.Context, coll graphstore.Collection, doc graphstore.Document) (bool, error) {
	if doc.Key == "" {
		return false, graphstore.ErrMissingKey
	}
	inserted := false
	err := s.db.Update(func(txn *badger.Txn) error {
		k := dbKey(coll, doc.Key)
		_, err := txn.Get(k)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		inserted = true
		return txn.Set(k, doc.Data)
	})
	if err != nil {
		return false, fmt.Errorf("badgerstore: insert %s/%s: %w", coll, doc.Key, err)
	}
	return inserted, nil
}

func (s *Store) Replace(ctx context.Context, coll graphstore.Collection, doc graphstore.Document) error {
	if doc.Key == "" {
		return graphstore.ErrMissingKey
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(dbKey(coll, doc.Key), doc.Data)
	})
	if err != nil {
		return fmt.Errorf("badgerstore: replace %s/%s: %w", coll, doc.Key, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, coll graphstore.Collection, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(dbKey(coll, key))
	})
	if err != nil {
		return fmt.Errorf("badgerstore: remove %s/%s: %w", coll, key, err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context, coll graphstore.Collection) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		p := prefix(coll)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badgerstore: count %s: %w", coll, err)
	}
	return n, nil
}

// scan walks coll in key order, skipping offset documents and collecting up
// to limit (all when limit < 0) that satisfy keep.
func (s *Store) scan(ctx context.Context, coll graphstore.Collection, offset, limit int, keep func(graphstore.Document) (bool, error)) ([]graphstore.Document, error) {
	var docs []graphstore.Document
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		p := prefix(coll)
		it := txn.NewIterator(opts)
		defer it.Close()

		skipped := 0
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if limit >= 0 && len(docs) >= limit {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if skipped < offset {
				skipped++
				continue
			}
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			doc := graphstore.Document{Key: string(item.Key()[len(p):]), Data: data}
			if keep != nil {
				ok, err := keep(doc)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: scan %s: %w", coll, err)
	}
	return docs, nil
}

func (s *Store) ScanAll(ctx context.Context, coll graphstore.Collection) (graphstore.Iterator, error) {
	docs, err := s.scan(ctx, coll, 0, -1, nil)
	if err != nil {
		return nil, err
	}
	return graphstore.NewSliceIterator(docs), nil
}

func (s *Store) ScanPage(ctx context.Context, coll graphstore.Collection, offset, limit int) (graphstore.Iterator, error) {
	if limit <= 0 {
		return graphstore.NewSliceIterator(nil), nil
	}
	docs, err := s.scan(ctx, coll, offset, limit, nil)
	if err != nil {
		return nil, err
	}
	return graphstore.NewSliceIterator(docs), nil
}

func (s *Store) ScanByFilter(ctx context.Context, coll graphstore.Collection, f graphstore.Filter) (graphstore.Iterator, error) {
	docs, err := s.scan(ctx, coll, 0, -1, f.Matches)
	if err != nil {
		return nil, err
	}
	return graphstore.NewSliceIterator(docs), nil
}

// Close stops background GC and closes the database
func (s *Store) Close() error {
	var err error
	s.closed.Do(func() {
		close(s.stop)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
