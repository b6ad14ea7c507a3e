// Package notify records in-app notifications and fans them out as device pushes.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"farmnook-dispatch/internal/apperr"
	"farmnook-dispatch/internal/domain"
	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/push"
	"farmnook-dispatch/internal/store"
)

// Options tunes the dispatcher deadlines.
type Options struct {
	OperationTimeout time.Duration
	PushTimeout      time.Duration
}

// Result describes what Notify did.
type Result struct {
	NotificationID string
	Tokens         int
	Pushed         bool
}

// Dispatcher writes notification documents and sends pushes.
type Dispatcher struct {
	store        documentStore
	sender       pushSender
	opts         Options
	pushFailures prometheus.Counter
	logger       logx.Logger
	now          func() time.Time
}

// NewDispatcher creates a Dispatcher. pushFailures may be nil.
func NewDispatcher(st documentStore, sender pushSender, opts Options, pushFailures prometheus.Counter, logger logx.Logger) *Dispatcher {
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 3 * time.Second
	}
	if opts.PushTimeout <= 0 {
		opts.PushTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Dispatcher{
		store:        st,
		sender:       sender,
		opts:         opts,
		pushFailures: pushFailures,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Notify stores a notification for recipientID and pushes it to the
// recipient's devices. Only a failed notification write is returned;
// missing devices and push errors are logged.
func (d *Dispatcher) Notify(ctx context.Context, recipientID, title, message string, hint domain.RoutingHint) (Result, error) {
	n, err := domain.NewNotification(recipientID, title, message, hint, d.now())
	if err != nil {
		return Result{}, err
	}

	fields, err := store.Encode(n)
	if err != nil {
		return Result{}, fmt.Errorf("encode notification: %w", err)
	}
	delete(fields, "id")

	opCtx, cancel := context.WithTimeout(ctx, d.opts.OperationTimeout)
	id, err := d.store.Add(opCtx, domain.CollectionNotifications, fields)
	cancel()
	if err != nil {
		return Result{}, fmt.Errorf("write notification for %q: %w", n.RecipientID, err)
	}

	res := Result{NotificationID: id}
	log := d.logger.With(
		logx.String("recipient_id", n.RecipientID),
		logx.String("notification_id", id),
	)

	tokens, err := d.deviceTokens(ctx, n.RecipientID)
	if err != nil {
		log.Warn("recipient lookup failed, push skipped", logx.Err(err))
		return res, nil
	}
	res.Tokens = len(tokens)
	if len(tokens) == 0 {
		log.Warn("recipient has no valid device tokens, push skipped")
		return res, nil
	}

	pushCtx, cancel := context.WithTimeout(ctx, d.opts.PushTimeout)
	defer cancel()
	err = d.sender.Send(pushCtx, push.Message{
		Tokens: tokens,
		Title:  n.Title,
		Body:   n.Message,
		Data:   n.Data,
	})
	if err != nil {
		if d.pushFailures != nil {
			d.pushFailures.Inc()
		}
		log.Error("push delivery failed",
			logx.Int("tokens", len(tokens)),
			logx.Err(err),
		)
		return res, nil
	}

	res.Pushed = true
	log.Debug("push delivered", logx.Int("tokens", len(tokens)))
	return res, nil
}

func (d *Dispatcher) deviceTokens(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.OperationTimeout)
	defer cancel()

	doc, err := d.store.Get(ctx, domain.CollectionUsers, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var u domain.User
	if err := store.Decode(doc, &u); err != nil {
		return nil, fmt.Errorf("decode user %q: %w", userID, err)
	}
	return u.PlayerIDs, nil
}
