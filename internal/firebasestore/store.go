package firebasestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"farmnook-dispatch/internal/apperr"
	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/store"
)

// Store is a store.Store backed by a Firestore client.
type Store struct {
	client *firestore.Client
	logger logx.Logger
	retry  store.Retry
}

var _ store.Store = (*Store)(nil)

// New opens the Firestore client of app.
func New(ctx context.Context, app *firebase.App, logger logx.Logger) (*Store, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &Store{client: client, logger: logger, retry: store.DefaultRetry}, nil
}

// mapErr translates gRPC status codes to application errors.
func mapErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%s %s: %w", op, path, apperr.ErrNotFound)
	case codes.AlreadyExists:
		return fmt.Errorf("%s %s: %w", op, path, apperr.ErrConflict)
	case codes.InvalidArgument:
		return fmt.Errorf("%s %s: %w: %v", op, path, apperr.ErrInvalid, err)
	default:
		return fmt.Errorf("%s %s: %w", op, path, err)
	}
}

func toDocument(snap *firestore.DocumentSnapshot) store.Document {
	data := snap.Data()
	if data == nil {
		data = map[string]any{}
	}
	return store.Document{ID: snap.Ref.ID, Data: store.Fields(data)}
}

func toUpdates(data store.Fields) []firestore.Update {
	out := make([]firestore.Update, 0, len(data))
	for k, v := range data {
		out = append(out, firestore.Update{Path: k, Value: v})
	}
	return out
}

// NewID returns an auto-generated Firestore id.
func (s *Store) NewID(collection string) string {
	return s.client.Collection(collection).NewDoc().ID
}

// Get returns a document by id.
func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return store.Document{}, mapErr("get", collection+"/"+id, err)
	}
	return toDocument(snap), nil
}

// Add creates a document with a generated id.
func (s *Store) Add(ctx context.Context, collection string, data store.Fields) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, map[string]any(data))
	if err != nil {
		return "", mapErr("add", collection, err)
	}
	return ref.ID, nil
}

// Set writes a document; merge keeps fields not present in data.
func (s *Store) Set(ctx context.Context, collection, id string, data store.Fields, merge bool) error {
	var opts []firestore.SetOption
	if merge {
		opts = append(opts, firestore.MergeAll)
	}
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, map[string]any(data), opts...)
	return mapErr("set", collection+"/"+id, err)
}

// Update changes top-level fields of an existing document.
func (s *Store) Update(ctx context.Context, collection, id string, data store.Fields) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, toUpdates(data))
	return mapErr("update", collection+"/"+id, err)
}

// GetAll fetches ids in batches of store.MaxBatch and skips missing documents.
func (s *Store) GetAll(ctx context.Context, collection string, ids []string) ([]store.Document, error) {
	var out []store.Document
	for _, batch := range store.Chunk(ids, store.MaxBatch) {
		refs := make([]*firestore.DocumentRef, 0, len(batch))
		for _, id := range batch {
			refs = append(refs, s.client.Collection(collection).Doc(id))
		}
		snaps, err := s.client.GetAll(ctx, refs)
		if err != nil {
			return nil, mapErr("get all", collection, err)
		}
		for _, snap := range snaps {
			if snap == nil || !snap.Exists() {
				continue
			}
			out = append(out, toDocument(snap))
		}
	}
	return out, nil
}

// buildQuery applies non-nil filters server-side; Firestore cannot match
// missing fields, so nil filters are returned for client-side evaluation.
func (s *Store) buildQuery(q store.Query) (firestore.Query, []store.Filter) {
	fq := s.client.Collection(q.Collection).Query
	var local []store.Filter
	for _, f := range q.Where {
		if f.Value == nil {
			local = append(local, f)
			continue
		}
		fq = fq.Where(f.Field, "==", f.Value)
	}
	return fq, local
}

func filterLocal(snaps []*firestore.DocumentSnapshot, local []store.Filter) []store.Document {
	out := make([]store.Document, 0, len(snaps))
	for _, snap := range snaps {
		doc := toDocument(snap)
		if store.Matches(doc.Data, local) {
			out = append(out, doc)
		}
	}
	return out
}

// Query runs a one-shot equality query.
func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	fq, local := s.buildQuery(q)
	snaps, err := fq.Documents(ctx).GetAll()
	if err != nil {
		return nil, mapErr("query", q.Collection, err)
	}
	return filterLocal(snaps, local), nil
}

// Subscribe attaches a snapshot listener. The first snapshot is delivered
// before Subscribe returns. A listener that fails is reattached with backoff.
func (s *Store) Subscribe(ctx context.Context, q store.Query, fn func([]store.Document)) (func(), error) {
	fq, local := s.buildQuery(q)
	subCtx, cancel := context.WithCancel(ctx)

	it, err := attach(subCtx, fq, local, fn)
	if err != nil {
		cancel()
		return nil, mapErr("subscribe", q.Collection, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		store.Follow(subCtx, s.retry,
			func(context.Context) error {
				defer it.Stop()
				return s.follow(it, q, local, fn)
			},
			func(ctx context.Context) error {
				next, err := attach(ctx, fq, local, fn)
				if err != nil {
					return err
				}
				it = next
				return nil
			},
			func(err error, attempt int, delay time.Duration) {
				s.logger.Warn("firestore subscription lost, resubscribing",
					logx.String("collection", q.Collection),
					logx.Int("attempt", attempt),
					logx.Duration("delay", delay),
					logx.Err(err),
				)
			},
		)
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

// attach opens a snapshot iterator and delivers its first snapshot.
func attach(ctx context.Context, fq firestore.Query, local []store.Filter, fn func([]store.Document)) (*firestore.QuerySnapshotIterator, error) {
	it := fq.Snapshots(ctx)
	first, err := it.Next()
	if err == nil {
		err = deliver(first, local, fn)
	}
	if err != nil {
		it.Stop()
		return nil, err
	}
	return it, nil
}

// follow delivers snapshots until the iterator is stopped (nil) or fails.
func (s *Store) follow(it *firestore.QuerySnapshotIterator, q store.Query, local []store.Filter, fn func([]store.Document)) error {
	for {
		snap, err := it.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
				return nil
			}
			return err
		}
		if err := deliver(snap, local, fn); err != nil {
			s.logger.Warn("firestore snapshot read failed",
				logx.String("collection", q.Collection),
				logx.Err(err),
			)
		}
	}
}

func deliver(snap *firestore.QuerySnapshot, local []store.Filter, fn func([]store.Document)) error {
	docs, err := snap.Documents.GetAll()
	if err != nil {
		return err
	}
	fn(filterLocal(docs, local))
	return nil
}

// WithTx runs fn inside a Firestore transaction. Firestore retries fn on
// contention, so fn must not have side effects outside tx.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(&txStore{client: s.client, tx: tx})
	})
	if err != nil {
		if status.Code(err) == codes.Aborted {
			return fmt.Errorf("transaction: %w", apperr.ErrConflict)
		}
		return err
	}
	return nil
}

// Close closes the Firestore client.
func (s *Store) Close() error { return s.client.Close() }

type txStore struct {
	client *firestore.Client
	tx     *firestore.Transaction
}

func (t *txStore) Get(_ context.Context, collection, id string) (store.Document, error) {
	snap, err := t.tx.Get(t.client.Collection(collection).Doc(id))
	if err != nil {
		return store.Document{}, mapErr("tx get", collection+"/"+id, err)
	}
	return toDocument(snap), nil
}

func (t *txStore) Create(_ context.Context, collection, id string, data store.Fields) error {
	err := t.tx.Create(t.client.Collection(collection).Doc(id), map[string]any(data))
	return mapErr("tx create", collection+"/"+id, err)
}

func (t *txStore) Update(_ context.Context, collection, id string, data store.Fields) error {
	err := t.tx.Update(t.client.Collection(collection).Doc(id), toUpdates(data))
	return mapErr("tx update", collection+"/"+id, err)
}
