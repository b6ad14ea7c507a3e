// Package memstore is an in-process document store used for local runs and tests.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"farmnook-dispatch/internal/apperr"
	"farmnook-dispatch/internal/store"
)

// Op names a store operation for failure injection.
type Op string

// Operations passed to FailHook.
const (
	OpGet    Op = "get"
	OpCreate Op = "create"
	OpSet    Op = "set"
	OpUpdate Op = "update"
	OpQuery  Op = "query"
)

// FailHook may return an error to make the named operation fail.
type FailHook func(op Op, collection, id string) error

// Store keeps documents in memory. Transactions are serialized.
type Store struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	docs   map[string]map[string]store.Fields
	subs   map[int]*subscription
	nextID int
	fail   FailHook
}

type subscription struct {
	mu sync.Mutex
	q  store.Query
	fn func([]store.Document)
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		docs: make(map[string]map[string]store.Fields),
		subs: make(map[int]*subscription),
	}
}

// SetFailHook installs a failure injection hook (nil removes it).
func (s *Store) SetFailHook(h FailHook) {
	s.mu.Lock()
	s.fail = h
	s.mu.Unlock()
}

func (s *Store) check(op Op, collection, id string) error {
	s.mu.RLock()
	h := s.fail
	s.mu.RUnlock()
	if h == nil {
		return nil
	}
	return h(op, collection, id)
}

// NewID returns a random UUID.
func (s *Store) NewID(string) string { return uuid.NewString() }

// Get returns a copy of the document.
func (s *Store) Get(_ context.Context, collection, id string) (store.Document, error) {
	if err := s.check(OpGet, collection, id); err != nil {
		return store.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[collection][id]
	if !ok {
		return store.Document{}, fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
	}
	return store.Document{ID: id, Data: clone(data)}, nil
}

// Add creates a document with a generated id.
func (s *Store) Add(ctx context.Context, collection string, data store.Fields) (string, error) {
	id := s.NewID(collection)
	if err := s.check(OpCreate, collection, id); err != nil {
		return "", err
	}
	s.write(collection, id, data, false)
	return id, nil
}

// Set creates or overwrites a document.
func (s *Store) Set(_ context.Context, collection, id string, data store.Fields, merge bool) error {
	if err := s.check(OpSet, collection, id); err != nil {
		return err
	}
	s.write(collection, id, data, merge)
	return nil
}

// Update merges fields into an existing document.
func (s *Store) Update(_ context.Context, collection, id string, data store.Fields) error {
	if err := s.check(OpUpdate, collection, id); err != nil {
		return err
	}
	s.mu.RLock()
	_, ok := s.docs[collection][id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
	}
	s.write(collection, id, data, true)
	return nil
}

// GetAll returns the existing documents among ids.
func (s *Store) GetAll(ctx context.Context, collection string, ids []string) ([]store.Document, error) {
	out := make([]store.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.Get(ctx, collection, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// Query returns matching documents ordered by id.
func (s *Store) Query(_ context.Context, q store.Query) ([]store.Document, error) {
	if err := s.check(OpQuery, q.Collection, ""); err != nil {
		return nil, err
	}
	return s.snapshot(q), nil
}

// Subscribe delivers the current result set and every subsequent change.
func (s *Store) Subscribe(ctx context.Context, q store.Query, fn func([]store.Document)) (func(), error) {
	sub := &subscription{q: q, fn: fn}
	s.mu.Lock()
	key := s.nextID
	s.nextID++
	s.subs[key] = sub
	s.mu.Unlock()

	s.deliver(sub)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, key)
			s.mu.Unlock()
		})
	}
	context.AfterFunc(ctx, stop)
	return stop, nil
}

// WithTx runs fn with staged writes applied only if fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{s: s, staged: map[key]store.Fields{}}
	if err := fn(tx); err != nil {
		return err
	}
	for _, k := range tx.order {
		s.write(k.collection, k.id, tx.staged[k], false)
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Len returns the number of documents in collection.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[collection])
}

func (s *Store) write(collection, id string, data store.Fields, merge bool) {
	s.mu.Lock()
	col, ok := s.docs[collection]
	if !ok {
		col = make(map[string]store.Fields)
		s.docs[collection] = col
	}
	next := clone(data)
	if merge {
		if prev, ok := col[id]; ok {
			merged := clone(prev)
			for k, v := range next {
				merged[k] = v
			}
			next = merged
		}
	}
	col[id] = next
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.q.Collection == collection {
			subs = append(subs, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range subs {
		s.deliver(sub)
	}
}

func (s *Store) snapshot(q store.Query) []store.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.docs[q.Collection]
	out := make([]store.Document, 0, len(col))
	for id, data := range col {
		if store.Matches(data, q.Where) {
			out = append(out, store.Document{ID: id, Data: clone(data)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// deliver snapshots under sub.mu so a subscriber never sees an older
// result set after a newer one.
func (s *Store) deliver(sub *subscription) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.fn(s.snapshot(sub.q))
}

type key struct{ collection, id string }

type memTx struct {
	s      *Store
	staged map[key]store.Fields
	order  []key
}

func (t *memTx) Get(ctx context.Context, collection, id string) (store.Document, error) {
	if data, ok := t.staged[key{collection, id}]; ok {
		return store.Document{ID: id, Data: clone(data)}, nil
	}
	return t.s.Get(ctx, collection, id)
}

func (t *memTx) Create(ctx context.Context, collection, id string, data store.Fields) error {
	if err := t.s.check(OpCreate, collection, id); err != nil {
		return err
	}
	if _, err := t.Get(ctx, collection, id); err == nil {
		return fmt.Errorf("%s/%s already exists: %w", collection, id, apperr.ErrConflict)
	}
	t.stage(collection, id, clone(data))
	return nil
}

func (t *memTx) Update(ctx context.Context, collection, id string, data store.Fields) error {
	if err := t.s.check(OpUpdate, collection, id); err != nil {
		return err
	}
	doc, err := t.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	for k, v := range data {
		doc.Data[k] = v
	}
	t.stage(collection, id, doc.Data)
	return nil
}

func (t *memTx) stage(collection, id string, data store.Fields) {
	k := key{collection, id}
	if _, ok := t.staged[k]; !ok {
		t.order = append(t.order, k)
	}
	t.staged[k] = data
}

func clone(f store.Fields) store.Fields {
	out, err := store.Encode(f)
	if err != nil || out == nil {
		out = make(store.Fields, len(f))
		for k, v := range f {
			out[k] = v
		}
	}
	return out
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
