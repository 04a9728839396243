// Package sqlitestore keeps the crawl graph in a single SQLite file using the
// pure Go modernc.org/sqlite driver. Every collection shares one documents
// table; filters run inside SQLite through json_extract.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"tweetgraph/pkg/graphstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
  seq        INTEGER PRIMARY KEY AUTOINCREMENT,
  collection TEXT NOT NULL,
  key        TEXT NOT NULL,
  data       TEXT NOT NULL,
  UNIQUE (collection, key)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection, seq);
`

// Store implements graphstore.Store on SQLite
type Store struct {
	db *sql.DB
}

var _ graphstore.Store = (*Store)(nil)

// Open opens the database at path, creating the schema when needed. Use
// ":memory:" for a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	// A single connection serialises writers and keeps ":memory:" databases
	// from splitting across connections.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlitestore: pragmas: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Exists(ctx context.Context, coll graphstore.Collection, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE collection = ? AND key = ?`, string(coll), key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlitestore: exists %s/%s: %w", coll, key, err)
	}
	return true, nil
}

func (s *Store) Get(ctx context.Context, coll graphstore.Collection, key string) (graphstore.Document, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND key = ?`, string(coll), key).Scan(&data)
	if err == sql.ErrNoRows {
		return graphstore.Document{}, false, nil
	}
	if err != nil {
		return graphstore.Document{}, false, fmt.Errorf("sqlitestore: get %s/%s: %w", coll, key, err)
	}
	return graphstore.Document{Key: key, Data: []byte(data)}, true, nil
}

func (s *Store) Insert(ctx context.Context, coll graphstore.Collection, doc graphstore.Document) (bool, error) {
	if doc.Key == "" {
		return false, graphstore.ErrMissingKey
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, key, data) VALUES (?, ?, ?)
		 ON CONFLICT (collection, key) DO NOTHING`,
		string(coll), doc.Key, string(doc.Data))
	if err != nil {
		return false, fmt.Errorf("sqlitestore: insert %s/%s: %w", coll, doc.Key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlitestore: insert %s/%s: %w", coll, doc.Key, err)
	}
	return n == 1, nil
}

func (s *Store) Replace(ctx context.Context, coll graphstore.Collection, doc graphstore.Document) error {
	if doc.Key == "" {
		return graphstore.ErrMissingKey
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, key, data) VALUES (?, ?, ?)
		 ON CONFLICT (collection, key) DO UPDATE SET data = excluded.data`,
		string(coll), doc.Key, string(doc.Data))
	if err != nil {
		return fmt.Errorf("sqlitestore: replace %s/%s: %w", coll, doc.Key, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, coll graphstore.Collection, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND key = ?`, string(coll), key)
	if err != nil {
		return fmt.Errorf("sqlitestore: remove %s/%s: %w", coll, key, err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context, coll graphstore.Collection) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, string(coll)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: count %s: %w", coll, err)
	}
	return n, nil
}

// query materialises the result set. Callers issue further statements while
// iterating and the pool has a single connection, so rows cannot stay open.
func (s *Store) query(ctx context.Context, coll graphstore.Collection, q string, args ...interface{}) (graphstore.Iterator, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: scan %s: %w", coll, err)
	}
	defer rows.Close()

	var docs []graphstore.Document
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan %s: %w", coll, err)
		}
		docs = append(docs, graphstore.Document{Key: key, Data: []byte(data)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: scan %s: %w", coll, err)
	}
	return graphstore.NewSliceIterator(docs), nil
}

func (s *Store) ScanAll(ctx context.Context, coll graphstore.Collection) (graphstore.Iterator, error) {
	return s.query(ctx, coll,
		`SELECT key, data FROM documents WHERE collection = ? ORDER BY seq`, string(coll))
}

func (s *Store) ScanPage(ctx context.Context, coll graphstore.Collection, offset, limit int) (graphstore.Iterator, error) {
	if limit <= 0 {
		return graphstore.NewSliceIterator(nil), nil
	}
	if offset < 0 {
		offset = 0
	}
	return s.query(ctx, coll,
		`SELECT key, data FROM documents WHERE collection = ? ORDER BY seq LIMIT ? OFFSET ?`,
		string(coll), limit, offset)
}

func (s *Store) ScanByFilter(ctx context.Context, coll graphstore.Collection, f graphstore.Filter) (graphstore.Iterator, error) {
	if len(f) == 0 {
		return graphstore.NewSliceIterator(nil), nil
	}
	conds := make([]string, 0, len(f))
	args := []interface{}{string(coll)}
	for _, m := range f {
		path := `$."` + m.Field + `"`
		conds = append(conds, `(json_type(data, ?) = 'text' AND json_extract(data, ?) = ?)`)
		args = append(args, path, path, m.Value)
	}
	q := `SELECT key, data FROM documents WHERE collection = ? AND (` +
		strings.Join(conds, " OR ") + `) ORDER BY seq`
	return s.query(ctx, coll, q, args...)
}

func (s *Store) Close() error {
	return s.db.Close()
}
