// Package graphstore defines the document store the crawler persists its
// graph into, plus the collection names shared by every backend.
//
// A Store holds JSON documents keyed by their "_key" field inside named
// collections. Backends live in sub-packages (memstore, badgerstore,
// sqlitestore, pgstore) and are verified against the same conformance suite
// in storetest.
package graphstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection names a group of documents
type Collection string

const (
	Tweets                       Collection = "tweets"
	TweetsInvolved               Collection = "tweets-involved"
	Users                        Collection = "users"
	UsersInvolved                Collection = "users-involved"
	MentionRelationships         Collection = "mention-relationships"
	MentionRelationshipsInvolved Collection = "mention-relationships-involved"
	RetweetRelationships         Collection = "retweet-relationships"
	RetweetRelationshipsInvolved Collection = "retweet-relationships-involved"
)

// Collections lists every collection a graph uses, vertices first
var Collections = []Collection{
	Users,
	UsersInvolved,
	Tweets,
	TweetsInvolved,
	MentionRelationships,
	MentionRelationshipsInvolved,
	RetweetRelationships,
	RetweetRelationshipsInvolved,
}

// ErrMissingKey is returned when a document has no "_key"
var ErrMissingKey = errors.New("graphstore: document has no _key")

// Document is one stored JSON object
type Document struct {
	Key  string
	Data json.RawMessage
}

// NewDocument marshals v and reads its "_key" field
func NewDocument(v interface{}) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Document{}, fmt.Errorf("graphstore: marshal document: %w", err)
	}
	var head struct {
		Key string `json:"_key"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Document{}, fmt.Errorf("graphstore: document is not an object: %w", err)
	}
	if head.Key == "" {
		return Document{}, ErrMissingKey
	}
	return Document{Key: head.Key, Data: data}, nil
}

// Decode unmarshals the document into v
func (d Document) Decode(v interface{}) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("graphstore: decode %q: %w", d.Key, err)
	}
	return nil
}

// Match selects documents whose top-level string Field equals Value
type Match struct {
	Field string
	Value string
}

// Filter matches a document when any of its Matches holds
type Filter []Match

// EndpointFilter matches edges that start or end at ref
func EndpointFilter(ref string) Filter {
	return Filter{{Field: "_from", Value: ref}, {Field: "_to", Value: ref}}
}

// Matches evaluates the filter against doc. An empty filter matches nothing.
func (f Filter) Matches(doc Document) (bool, error) {
	if len(f) == 0 {
		return false, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc.Data, &fields); err != nil {
		return false, fmt.Errorf("graphstore: filter %q: %w", doc.Key, err)
	}
	for _, m := range f {
		raw, ok := fields[m.Field]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if s == m.Value {
			return true, nil
		}
	}
	return false, nil
}

// Iterator walks a sequence of documents
//
//	it, err := store.ScanPage(ctx, graphstore.Tweets, 0, 100)
//	...
//	defer it.Close()
//	for it.Next() {
//	    doc := it.Document()
//	}
//	if err := it.Error(); err != nil { ... }
type Iterator interface {
	// Next advances the iterator. It returns false when the sequence is
	// exhausted or an error occurred.
	Next() bool
	// Document returns the current document
	Document() Document
	// Error returns the last error encountered
	Error() error
	// Close releases any resources held by the iterator
	Close() error
}

// Store is the persistence boundary of the crawler
type Store interface {
	// Exists reports whether key is present in coll
	Exists(ctx context.Context, coll Collection, key string) (bool, error)
	// Get returns the document stored under key; found is false when absent
	Get(ctx context.Context, coll Collection, key string) (doc Document, found bool, err error)
	// Insert stores doc unless its key already exists. It never overwrites
	// and reports whether the document was written.
	Insert(ctx context.Context, coll Collection, doc Document) (inserted bool, err error)
	// Replace stores doc, overwriting any existing document with the same key
	Replace(ctx context.Context, coll Collection, doc Document) error
	// Remove deletes key from coll; removing a missing key is not an error
	Remove(ctx context.Context, coll Collection, key string) error
	// Count returns the number of documents in coll
	Count(ctx context.Context, coll Collection) (int, error)
	// ScanAll iterates every document of coll
	ScanAll(ctx context.Context, coll Collection) (Iterator, error)
	// ScanPage iterates at most limit documents of coll after skipping
	// offset. Order is stable while coll is not modified.
	ScanPage(ctx context.Context, coll Collection, offset, limit int) (Iterator, error)
	// ScanByFilter iterates the documents of coll matched by f
	ScanByFilter(ctx context.Context, coll Collection, f Filter) (Iterator, error)
	// Close releases the backend
	Close() error
}

// SliceIterator iterates an in-memory slice of documents
type SliceIterator struct {
	docs []Document
	pos  int
	err  error
}

// NewSliceIterator returns an Iterator over docs
func NewSliceIterator(docs []Document) *SliceIterator {
	return &SliceIterator{docs: docs, pos: -1}
}

// ErrorIterator returns an Iterator that yields nothing and reports err
func ErrorIterator(err error) *SliceIterator {
	return &SliceIterator{pos: -1, err: err}
}

func (it *SliceIterator) Next() bool {
	if it.err != nil || it.pos+1 >= len(it.docs) {
		return false
	}
	it.pos++
	return true
}

func (it *SliceIterator) Document() Document {
	if it.pos < 0 || it.pos >= len(it.docs) {
		return Document{}
	}
	return it.docs[it.pos]
}

func (it *SliceIterator) Error() error { return it.err }

func (it *SliceIterator) Close() error {
	it.docs = nil
	return nil
}

// Collect drains it into a slice and closes it
func Collect(it Iterator) ([]Document, error) {
	defer it.Close()
	var docs []Document
	for it.Next() {
		docs = append(docs, it.Document())
	}
	return docs, it.Error()
}

// CountMatches drains it and returns the number of documents seen
func CountMatches(it Iterator) (int, error) {
	defer it.Close()
	n := 0
	for it.Next() {
		n++
	}
	return n, it.Error()
}

// Page applies offset/limit to an ordered slice
func Page(docs []Document, offset, limit int) []Document {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(docs) || limit <= 0 {
		return nil
	}
	end := offset + limit
	if end > len(docs) {
		end = len(docs)
	}
	return docs[offset:end]
}
