//go:generate mockgen -source=contracts.go -destination=assignment_mocks_test.go -package=assignment

package assignment

import (
	"context"

	"farmnook-dispatch/internal/domain"
	"farmnook-dispatch/internal/service/notify"
)

type notifier interface {
	Notify(ctx context.Context, recipientID, title, message string, hint domain.RoutingHint) (notify.Result, error)
}
