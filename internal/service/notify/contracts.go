//go:generate mockgen -source=contracts.go -destination=notify_mocks_test.go -package=notify

package notify

import (
	"context"

	"farmnook-dispatch/internal/push"
	"farmnook-dispatch/internal/store"
)

type documentStore interface {
	Add(ctx context.Context, collection string, data store.Fields) (string, error)
	Get(ctx context.Context, collection, id string) (store.Document, error)
}

type pushSender interface {
	Send(ctx context.Context, msg push.Message) error
}
