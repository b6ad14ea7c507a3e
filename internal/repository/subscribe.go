package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/store"
)

type changeEvent struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Op         string `json:"op"`
}

// Subscribe listens on the change channel with a dedicated connection and
// re-runs q whenever a document of its collection changes. The first result
// set is delivered before Subscribe returns. A lost connection is replaced
// with backoff and the result set is reloaded.
func (r *DocumentRepo) Subscribe(ctx context.Context, q store.Query, fn func([]store.Document)) (func(), error) {
	conn, err := r.listen(ctx, q, fn)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		store.Follow(subCtx, r.retry,
			func(ctx context.Context) error {
				err := r.follow(ctx, conn, q, fn)
				conn = nil
				return err
			},
			func(ctx context.Context) error {
				c, err := r.listen(ctx, q, fn)
				if err != nil {
					return err
				}
				conn = c
				return nil
			},
			func(err error, attempt int, delay time.Duration) {
				r.logger.Warn("document subscription lost, resubscribing",
					logx.String("collection", q.Collection),
					logx.Int("attempt", attempt),
					logx.Duration("delay", delay),
					logx.Err(err),
				)
			},
		)
	}()

	stop := func() {
		cancel()
		<-done
	}
	return stop, nil
}

// listen acquires a connection, starts listening and only then loads the
// first result set, so no change committed in between is missed.
func (r *DocumentRepo) listen(ctx context.Context, q store.Query, fn func([]store.Document)) (*pgxpool.Conn, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: acquire: %w", q.Collection, err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+changesChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("subscribe %s: listen: %w", q.Collection, err)
	}
	docs, err := r.Query(ctx, q)
	if err != nil {
		release(conn)
		return nil, err
	}
	fn(docs)
	return conn, nil
}

// follow waits for notifications on conn until ctx is done (nil) or the
// connection fails. conn is released on return.
func (r *DocumentRepo) follow(ctx context.Context, conn *pgxpool.Conn, q store.Query, fn func([]store.Document)) error {
	defer release(conn)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		var ev changeEvent
		if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
			r.logger.Warn("bad change payload", logx.String("payload", n.Payload), logx.Err(err))
			continue
		}
		if ev.Collection != q.Collection {
			continue
		}
		docs, err := r.Query(ctx, q)
		if err != nil {
			r.logger.Warn("subscription refresh failed",
				logx.String("collection", q.Collection),
				logx.Err(err),
			)
			continue
		}
		fn(docs)
	}
}

func release(conn *pgxpool.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := conn.Exec(ctx, "UNLISTEN *"); err != nil {
		// a connection stuck in LISTEN must not go back to the pool
		_ = conn.Conn().Close(ctx)
	}
	conn.Release()
}
