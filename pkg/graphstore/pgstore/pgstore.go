// Package pgstore keeps the crawl graph in PostgreSQL. Documents are stored
// as jsonb so edge filters can be evaluated by the server.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tweetgraph/pkg/graphstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS tweetgraph_documents (
  seq        BIGSERIAL PRIMARY KEY,
  collection TEXT  NOT NULL,
  key        TEXT  NOT NULL,
  data       JSONB NOT NULL,
  UNIQUE (collection, key)
);
CREATE INDEX IF NOT EXISTS idx_tweetgraph_documents_collection
  ON tweetgraph_documents (collection, seq);
`

// Store implements graphstore.Store on a pgx connection pool
type Store struct {
	pool *pgxpool.Pool
}

var _ graphstore.Store = (*Store)(nil)

// Open connects to dsn and ensures the schema exists
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse dsn: %w", err)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Truncate drops every document. Used by tests sharing one database.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE tweetgraph_documents`)
	return err
}

func (s *Store) Exists(ctx context.Context, coll graphstore.Collection, key string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tweetgraph_documents WHERE collection = $1 AND key = $2)`,
		string(coll), key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pgstore: exists %s/%s: %w", coll, key, err)
	}
	return exists, nil
}

func (s *Store) Get(ctx context.Context, coll graphstore.Collection, key string) (graphstore.Document, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM tweetgraph_documents WHERE collection = $1 AND key = $2`,
		string(coll), key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return graphstore.Document{}, false, nil
	}
	if err != nil {
		return graphstore.Document{}, false, fmt.Errorf("pgstore: get %s/%s: %w", coll, key, err)
	}
	return graphstore.Document{Key: key, Data: data}, true, nil
}

func (s *Store) Insert(ctx context.Context, coll graphstore.Collection, doc graphstore.Document) (bool, error) {
	if doc.Key == "" {
		return false, graphstore.ErrMissingKey
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO tweetgraph_documents (collection, key, data) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, key) DO NOTHING`,
		string(coll), doc.Key, string(doc.Data))
	if err != nil {
		return false, fmt.Errorf("pgstore: insert %s/%s: %w", coll, doc.Key, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Replace(ctx context.Context, coll graphstore.Collection, doc graphstore.Document) error {
	if doc.Key == "" {
		return graphstore.ErrMissingKey
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tweetgraph_documents (collection, key, data) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, key) DO UPDATE SET data = EXCLUDED.data`,
		string(coll), doc.Key, string(doc.Data))
	if err != nil {
		return fmt.Errorf("pgstore: replace %s/%s: %w", coll, doc.Key, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, coll graphstore.Collection, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM tweetgraph_documents WHERE collection = $1 AND key = $2`, string(coll), key)
	if err != nil {
		return fmt.Errorf("pgstore: remove %s/%s: %w", coll, key, err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context, coll graphstore.Collection) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tweetgraph_documents WHERE collection = $1`, string(coll)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pgstore: count %s: %w", coll, err)
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, coll graphstore.Collection, q string, args ...interface{}) (graphstore.Iterator, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: scan %s: %w", coll, err)
	}
	defer rows.Close()

	var docs []graphstore.Document
	for rows.Next() {
		var (
			key  string
			data []byte
		)
		if err := rows.Scan(&key, &data); err != nil {
			return nil, fmt.Errorf("pgstore: scan %s: %w", coll, err)
		}
		docs = append(docs, graphstore.Document{Key: key, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgstore: scan %s: %w", coll, err)
	}
	return graphstore.NewSliceIterator(docs), nil
}

func (s *Store) ScanAll(ctx context.Context, coll graphstore.Collection) (graphstore.Iterator, error) {
	return s.query(ctx, coll,
		`SELECT key, data FROM tweetgraph_documents WHERE collection = $1 ORDER BY seq`, string(coll))
}

func (s *Store) ScanPage(ctx context.Context, coll graphstore.Collection, offset, limit int) (graphstore.Iterator, error) {
	if limit <= 0 {
		return graphstore.NewSliceIterator(nil), nil
	}
	if offset < 0 {
		offset = 0
	}
	return s.query(ctx, coll,
		`SELECT key, data FROM tweetgraph_documents WHERE collection = $1 ORDER BY seq LIMIT $2 OFFSET $3`,
		string(coll), limit, offset)
}

func (s *Store) ScanByFilter(ctx context.Context, coll graphstore.Collection, f graphstore.Filter) (graphstore.Iterator, error) {
	if len(f) == 0 {
		return graphstore.NewSliceIterator(nil), nil
	}
	conds := make([]string, 0, len(f))
	args := []interface{}{string(coll)}
	for _, m := range f {
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			`(jsonb_typeof(data -> $%d) = 'string' AND data ->> $%d = $%d)`, n+1, n+1, n+2))
		args = append(args, m.Field, m.Value)
	}
	q := `SELECT key, data FROM tweetgraph_documents WHERE collection = $1 AND (` +
		strings.Join(conds, " OR ") + `) ORDER BY seq`
	return s.query(ctx, coll, q, args...)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
