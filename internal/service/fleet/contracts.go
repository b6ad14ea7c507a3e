//go:generate mockgen -source=contracts.go -destination=fleet_mocks_test.go -package=fleet

package fleet

import (
	"context"

	"farmnook-dispatch/internal/store"
)

type documentStore interface {
	Get(ctx context.Context, collection, id string) (store.Document, error)
	Add(ctx context.Context, collection string, data store.Fields) (string, error)
	Query(ctx context.Context, q store.Query) ([]store.Document, error)
}

// PasswordHasher turns a plaintext password into a storable hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
}
