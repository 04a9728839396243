// Package memstore is an in-process graphstore.Store used for dry runs and
// tests. Documents are kept as encoded JSON so callers never share memory
// with the store.
package memstore

import (
	"context"
	"sync"

	"tweetgraph/pkg/graphstore"
)

type collection struct {
	order []string
	docs  map[string][]byte
}

// Store keeps every collection in maps guarded by one mutex. Scans return
// documents in insertion order.
type Store struct {
	mu    sync.RWMutex
	colls map[graphstore.Collection]*collection
}

var _ graphstore.Store = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{colls: make(map[graphstore.Collection]*collection)}
}

func (s *Store) coll(name graphstore.Collection, create bool) *collection {
	c, ok := s.colls[name]
	if !ok && create {
		c = &collection{docs: make(map[string][]byte)}
		s.colls[name] = c
	}
	return c
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (s *Store) Exists(ctx context.Context, coll graphstore.Collection, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.coll(coll, false)
	if c == nil {
		return false, nil
	}
	_, ok := c.docs[key]
	return ok, nil
}

func (s *Store) Get(ctx context.Context, coll graphstore.Collection, key string) (graphstore.Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.coll(coll, false)
	if c == nil {
		return graphstore.Document{}, false, nil
	}
	data, ok := c.docs[key]
	if !ok {
		return graphstore.Document{}, false, nil
	}
	return graphstore.Document{Key: key, Data: clone(data)}, true, nil
}

func (s *Store) Insert(ctx context.Context, coll graphstore.Collection, doc graphstore.Document) (bool, error) {
	if doc.Key == "" {
		return false, graphstore.ErrMissingKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(coll, true)
	if _, ok := c.docs[doc.Key]; ok {
		return false, nil
	}
	c.docs[doc.Key] = clone(doc.Data)
	c.order = append(c.order, doc.Key)
	return true, nil
}

func (s *Store) Replace(ctx context.Context, coll graphstore.Collection, doc graphstore.Document) error {
	if doc.Key == "" {
		return graphstore.ErrMissingKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(coll, true)
	if _, ok := c.docs[doc.Key]; !ok {
		c.order = append(c.order, doc.Key)
	}
	c.docs[doc.Key] = clone(doc.Data)
	return nil
}

func (s *Store) Remove(ctx context.Context, coll graphstore.Collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(coll, false)
	if c == nil {
		return nil
	}
	if _, ok := c.docs[key]; !ok {
		return nil
	}
	delete(c.docs, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Count(ctx context.Context, coll graphstore.Collection) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.coll(coll, false)
	if c == nil {
		return 0, nil
	}
	return len(c.docs), nil
}

// snapshot copies the documents of coll in insertion order
func (s *Store) snapshot(coll graphstore.Collection) []graphstore.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.coll(coll, false)
	if c == nil {
		return nil
	}
	docs := make([]graphstore.Document, 0, len(c.order))
	for _, k := range c.order {
		docs = append(docs, graphstore.Document{Key: k, Data: clone(c.docs[k])})
	}
	return docs
}

func (s *Store) ScanAll(ctx context.Context, coll graphstore.Collection) (graphstore.Iterator, error) {
	return graphstore.NewSliceIterator(s.snapshot(coll)), nil
}

func (s *Store) ScanPage(ctx context.Context, coll graphstore.Collection, offset, limit int) (graphstore.Iterator, error) {
	return graphstore.NewSliceIterator(graphstore.Page(s.snapshot(coll), offset, limit)), nil
}

func (s *Store) ScanByFilter(ctx context.Context, coll graphstore.Collection, f graphstore.Filter) (graphstore.Iterator, error) {
	var out []graphstore.Document
	for _, d := range s.snapshot(coll) {
		ok, err := f.Matches(d)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return graphstore.NewSliceIterator(out), nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}
