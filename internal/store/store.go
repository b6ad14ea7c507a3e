// Package store defines the document store contract shared by the Postgres
// and Firestore backends.
package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// MaxBatch is the largest id set fetched by one GetAll call.
const MaxBatch = 30

// Fields is the untyped body of a document.
type Fields map[string]any

// Document is a document id with its body.
type Document struct {
	ID   string
	Data Fields
}

// Filter is an equality condition on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents of a collection matching all filters.
type Query struct {
	Collection string
	Where      []Filter
}

// Eq is a shorthand for Filter{Field: field, Value: value}.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Reader is the read side shared by the store and its transactions.
// Get returns an error wrapping apperr.ErrNotFound for a missing document.
type Reader interface {
	Get(ctx context.Context, collection, id string) (Document, error)
}

// Tx is the set of operations available inside a transaction. Backends that
// require reads before writes (Firestore) expect callers to read first.
type Tx interface {
	Reader
	Create(ctx context.Context, collection, id string, data Fields) error
	Update(ctx context.Context, collection, id string, data Fields) error
}

// Store is a document database gateway.
type Store interface {
	Reader
	// NewID returns a fresh document id for collection.
	NewID(collection string) string
	// Add creates a document with a generated id and returns the id.
	Add(ctx context.Context, collection string, data Fields) (string, error)
	// Set creates or overwrites the document at id; merge keeps unspecified fields.
	Set(ctx context.Context, collection, id string, data Fields, merge bool) error
	// Update changes the given top-level fields of an existing document.
	Update(ctx context.Context, collection, id string, data Fields) error
	// GetAll fetches the documents with the given ids; missing ids are skipped.
	GetAll(ctx context.Context, collection string, ids []string) ([]Document, error)
	// Query runs a one-shot equality query.
	Query(ctx context.Context, q Query) ([]Document, error)
	// Subscribe calls fn with the full result set of q now and after every
	// change, until ctx is done or the returned stop func is called.
	Subscribe(ctx context.Context, q Query, fn func([]Document)) (stop func(), err error)
	// WithTx runs fn atomically.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Encode converts a typed record to Fields using its JSON field names.
func Encode(v any) (Fields, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var f Fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return f, nil
}

// Decode fills dst from doc. The document id is exposed as "id" unless the body has one.
func Decode(doc Document, dst any) error {
	data := make(Fields, len(doc.Data)+1)
	for k, v := range doc.Data {
		data[k] = v
	}
	if _, ok := data["id"]; !ok && doc.ID != "" {
		data["id"] = doc.ID
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("decode document %q: %w", doc.ID, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode document %q: %w", doc.ID, err)
	}
	return nil
}

// Chunk splits ids into unique batches of at most size elements, keeping first-seen order.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = MaxBatch
	}
	seen := make(map[string]struct{}, len(ids))
	uniq := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	var out [][]string
	for len(uniq) > 0 {
		n := size
		if len(uniq) < n {
			n = len(uniq)
		}
		out = append(out, uniq[:n:n])
		uniq = uniq[n:]
	}
	return out
}

// Matches reports whether data satisfies every filter. Values are compared
// after JSON normalisation so 1 and 1.0 are equal.
func Matches(data Fields, where []Filter) bool {
	for _, f := range where {
		got, ok := data[f.Field]
		if !ok {
			if f.Value == nil {
				continue
			}
			return false
		}
		if !sameJSON(got, f.Value) {
			return false
		}
	}
	return true
}

func sameJSON(a, b any) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	var na, nb any
	if json.Unmarshal(ra, &na) != nil || json.Unmarshal(rb, &nb) != nil {
		return false
	}
	return fmt.Sprint(na) == fmt.Sprint(nb)
}
