// Package view keeps id-keyed in-memory projections of live store queries.
package view

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/store"
)

// Decoder turns a document into a cached item. Returning an error skips the document.
type Decoder[T any] func(doc store.Document) (T, error)

// Change lists the ids touched by one Apply call.
type Change struct {
	Added   []string
	Updated []string
	Removed []string
}

// Empty reports whether the snapshot changed nothing.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

type entry[T any] struct {
	item T
	raw  store.Fields
}

// Cache is a concurrency-safe id-keyed cache fed by full query snapshots.
type Cache[T any] struct {
	decode Decoder[T]

	mu    sync.RWMutex
	items map[string]entry[T]
	ready bool
}

// NewCache creates an empty cache.
func NewCache[T any](decode Decoder[T]) *Cache[T] {
	return &Cache[T]{decode: decode, items: make(map[string]entry[T])}
}

// Apply replaces the cache content with snapshot and reports the difference.
// Documents that fail to decode are dropped from the cache.
func (c *Cache[T]) Apply(snapshot []store.Document) (Change, []error) {
	next := make(map[string]entry[T], len(snapshot))
	var errs []error
	for _, doc := range snapshot {
		item, err := c.decode(doc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		next[doc.ID] = entry[T]{item: item, raw: doc.Data}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var ch Change
	for id, e := range next {
		prev, ok := c.items[id]
		switch {
		case !ok:
			ch.Added = append(ch.Added, id)
		case !reflect.DeepEqual(prev.raw, e.raw):
			ch.Updated = append(ch.Updated, id)
		}
	}
	for id := range c.items {
		if _, ok := next[id]; !ok {
			ch.Removed = append(ch.Removed, id)
		}
	}
	sort.Strings(ch.Added)
	sort.Strings(ch.Updated)
	sort.Strings(ch.Removed)

	c.items = next
	c.ready = true
	return ch, errs
}

// Upsert stores item under id.
func (c *Cache[T]) Upsert(id string, item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[id] = entry[T]{item: item}
}

// Remove deletes id and reports whether it was present.
func (c *Cache[T]) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[id]
	delete(c.items, id)
	return ok
}

// Get returns the item cached under id.
func (c *Cache[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[id]
	return e.item, ok
}

// List returns the cached items ordered by id.
func (c *Cache[T]) List() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.items))
	for id := range c.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.items[id].item)
	}
	return out
}

// Len returns the number of cached items.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Ready reports whether at least one snapshot was applied.
func (c *Cache[T]) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Subscriber is the part of store.Store used by Sync.
type Subscriber interface {
	Subscribe(ctx context.Context, q store.Query, fn func([]store.Document)) (stop func(), err error)
}

// Sync keeps c in step with q until ctx is done or stop is called.
func Sync[T any](ctx context.Context, sub Subscriber, q store.Query, c *Cache[T], logger logx.Logger) (stop func(), err error) {
	log := logger.With(logx.String("collection", q.Collection))
	return sub.Subscribe(ctx, q, func(docs []store.Document) {
		ch, errs := c.Apply(docs)
		for _, err := range errs {
			log.Warn("skipping undecodable document", logx.Err(err))
		}
		if !ch.Empty() {
			log.Debug("view updated",
				logx.Int("added", len(ch.Added)),
				logx.Int("updated", len(ch.Updated)),
				logx.Int("removed", len(ch.Removed)),
			)
		}
	})
}

// DecodeAs returns a Decoder that uses store.Decode.
func DecodeAs[T any]() Decoder[T] {
	return func(doc store.Document) (T, error) {
		var v T
		err := store.Decode(doc, &v)
		return v, err
	}
}
