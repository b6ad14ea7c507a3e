// Package assignment turns pending delivery requests into deliveries, or
// declines them, and informs the parties involved.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"farmnook-dispatch/internal/apperr"
	"farmnook-dispatch/internal/domain"
	"farmnook-dispatch/internal/lock"
	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/store"
)

// Notification texts.
const (
	FallbackBusinessName = "A hauling business"

	titleAccepted = "Delivery Accepted"
	titleAssigned = "New Delivery Assigned"
	titleDeclined = "Delivery Declined"

	msgAssigned = "You have been assigned a new delivery"

	targetFarmer = "FarmerDashboardFragment"
	targetHauler = "HaulerDashboardFragment"
)

// Assignment describes a committed acceptance.
type Assignment struct {
	RequestID  string
	DeliveryID string
	HaulerID   string
	FarmerID   string
	BusinessID string
}

// AssignedHook observes committed acceptances. Hooks run synchronously
// before notifications are sent and must not block.
type AssignedHook func(ctx context.Context, a Assignment)

// Notified reports which parties received their in-app notification.
type Notified struct {
	Farmer bool `json:"farmer"`
	Hauler bool `json:"hauler"`
}

// AcceptResult is returned by AcceptRequest.
type AcceptResult struct {
	DeliveryID string   `json:"delivery_id"`
	RequestID  string   `json:"request_id"`
	HaulerID   string   `json:"hauler_id"`
	Notified   Notified `json:"notified"`
}

// DeclineResult is returned by DeclineRequest.
type DeclineResult struct {
	RequestID      string    `json:"request_id"`
	DeclinedAt     time.Time `json:"declined_at"`
	FarmerNotified bool      `json:"farmer_notified"`
}

// Workflow runs the accept and decline transitions of delivery requests.
type Workflow struct {
	store            store.Store
	locker           lock.Locker
	notifier         notifier
	outcomes         *prometheus.CounterVec
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time

	mu    sync.RWMutex
	hooks []AssignedHook
}

// NewWorkflow creates a Workflow. locker and outcomes may be nil.
func NewWorkflow(st store.Store, locker lock.Locker, n notifier, outcomes *prometheus.CounterVec, timeout time.Duration, logger logx.Logger) *Workflow {
	if locker == nil {
		locker = lock.Nop()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Workflow{
		store:            st,
		locker:           locker,
		notifier:         n,
		outcomes:         outcomes,
		operationTimeout: timeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// OnAssigned registers a hook invoked after every committed acceptance.
func (w *Workflow) OnAssigned(h AssignedHook) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hooks = append(w.hooks, h)
}

func (w *Workflow) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, w.operationTimeout)
}

func (w *Workflow) count(outcome string) {
	if w.outcomes != nil {
		w.outcomes.WithLabelValues(outcome).Inc()
	}
}

func (w *Workflow) countErr(err error) {
	switch {
	case errors.Is(err, apperr.ErrInvalid):
		w.count("invalid")
	case errors.Is(err, apperr.ErrConflict):
		w.count("conflict")
	case errors.Is(err, apperr.ErrNotFound):
		w.count("not_found")
	default:
		w.count("failed")
	}
}

// AcceptRequest marks the request accepted and creates its delivery in one
// transaction, then notifies the farmer and the hauler. Notification
// failures are logged and reported in the result; they never undo the
// acceptance.
func (w *Workflow) AcceptRequest(ctx context.Context, requestID, haulerID string) (AcceptResult, error) {
	requestID = strings.TrimSpace(requestID)
	haulerID = strings.TrimSpace(haulerID)
	fe := domain.FieldErrors{}
	if requestID == "" {
		fe.Add("request_id", "is required")
	}
	if haulerID == "" {
		fe.Add("hauler_id", "is required")
	}
	if err := fe.OrNil(); err != nil {
		w.countErr(err)
		return AcceptResult{}, err
	}

	release, err := w.locker.Acquire(ctx, requestID)
	if err != nil {
		w.countErr(err)
		return AcceptResult{}, fmt.Errorf("accept request %q: %w", requestID, err)
	}
	defer release()

	a, err := w.commitAcceptance(ctx, requestID, haulerID)
	if err != nil {
		w.countErr(err)
		return AcceptResult{}, fmt.Errorf("accept request %q: %w", requestID, err)
	}
	w.count("accepted")

	w.logger.Info("delivery request accepted",
		logx.String("event", "request_accepted"),
		logx.String("request_id", a.RequestID),
		logx.String("delivery_id", a.DeliveryID),
		logx.String("hauler_id", a.HaulerID),
	)

	w.runHooks(ctx, a)

	return AcceptResult{
		DeliveryID: a.DeliveryID,
		RequestID:  a.RequestID,
		HaulerID:   a.HaulerID,
		Notified:   w.notifyAccepted(ctx, a),
	}, nil
}

func (w *Workflow) commitAcceptance(ctx context.Context, requestID, haulerID string) (Assignment, error) {
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	deliveryID := w.store.NewID(domain.CollectionDeliveries)
	var a Assignment

	err := w.store.WithTx(ctx, func(tx store.Tx) error {
		req, err := readRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		switch req.State() {
		case domain.RequestDeclined:
			return fmt.Errorf("request was declined: %w", apperr.ErrConflict)
		case domain.RequestAccepted:
			return fmt.Errorf("request was already accepted: %w", apperr.ErrConflict)
		}
		if err := req.ValidateForAssignment(); err != nil {
			return err
		}

		hauler, err := readUser(ctx, tx, haulerID)
		if err != nil {
			return fmt.Errorf("hauler %q: %w", haulerID, err)
		}
		if hauler.UserType != domain.UserHauler {
			return domain.FieldErrors{"hauler_id": "is not a hauler"}
		}

		d, err := domain.NewDelivery(deliveryID, req, haulerID, w.now())
		if err != nil {
			return err
		}
		fields, err := store.Encode(d)
		if err != nil {
			return fmt.Errorf("encode delivery: %w", err)
		}

		if err := tx.Update(ctx, domain.CollectionRequests, requestID, store.Fields{"isAccepted": true}); err != nil {
			return fmt.Errorf("mark accepted: %w", err)
		}
		if err := tx.Create(ctx, domain.CollectionDeliveries, deliveryID, fields); err != nil {
			return fmt.Errorf("create delivery: %w", err)
		}

		businessID := req.BusinessID
		if businessID == "" {
			businessID = hauler.BusinessID
		}
		a = Assignment{
			RequestID:  requestID,
			DeliveryID: deliveryID,
			HaulerID:   haulerID,
			FarmerID:   req.FarmerID,
			BusinessID: businessID,
		}
		return nil
	})
	return a, err
}

func (w *Workflow) runHooks(ctx context.Context, a Assignment) {
	w.mu.RLock()
	hooks := append([]AssignedHook(nil), w.hooks...)
	w.mu.RUnlock()

	for _, h := range hooks {
		h(ctx, a)
	}
}

func (w *Workflow) notifyAccepted(ctx context.Context, a Assignment) Notified {
	var (
		out Notified
		g   errgroup.Group
	)

	g.Go(func() error {
		name := w.businessName(ctx, a.BusinessID)
		hint := domain.RoutingHint{
			"openTarget": targetFarmer,
			"farmerId":   a.FarmerID,
			"requestId":  a.RequestID,
			"deliveryId": a.DeliveryID,
		}
		_, err := w.notifier.Notify(ctx, a.FarmerID, titleAccepted, name+" accepted your delivery request", hint)
		if err != nil {
			w.logger.Warn("farmer notification failed",
				logx.String("request_id", a.RequestID),
				logx.String("farmer_id", a.FarmerID),
				logx.Err(err),
			)
			return nil
		}
		out.Farmer = true
		return nil
	})

	g.Go(func() error {
		hint := domain.RoutingHint{
			"openTarget": targetHauler,
			"haulerId":   a.HaulerID,
			"deliveryId": a.DeliveryID,
		}
		_, err := w.notifier.Notify(ctx, a.HaulerID, titleAssigned, msgAssigned, hint)
		if err != nil {
			w.logger.Warn("hauler notification failed",
				logx.String("delivery_id", a.DeliveryID),
				logx.String("hauler_id", a.HaulerID),
				logx.Err(err),
			)
			return nil
		}
		out.Hauler = true
		return nil
	})

	_ = g.Wait()
	return out
}

// businessName resolves a business display name, falling back to a generic label.
func (w *Workflow) businessName(ctx context.Context, businessID string) string {
	if businessID == "" {
		return FallbackBusinessName
	}
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	u, err := readUser(ctx, w.store, businessID)
	if err != nil {
		w.logger.Warn("business lookup failed",
			logx.String("business_id", businessID),
			logx.Err(err),
		)
		return FallbackBusinessName
	}
	if name := u.DisplayName(); name != "" {
		return name
	}
	return FallbackBusinessName
}

// DeclineRequest records the decline decision on a pending request and
// notifies the farmer with the reason.
func (w *Workflow) DeclineRequest(ctx context.Context, requestID, reason, adminID string) (DeclineResult, error) {
	requestID = strings.TrimSpace(requestID)
	dec, err := domain.NewDecline(reason, adminID, w.now())
	if err == nil && requestID == "" {
		err = domain.FieldErrors{"request_id": "is required"}
	}
	if err != nil {
		w.countErr(err)
		return DeclineResult{}, err
	}

	release, err := w.locker.Acquire(ctx, requestID)
	if err != nil {
		w.countErr(err)
		return DeclineResult{}, fmt.Errorf("decline request %q: %w", requestID, err)
	}
	defer release()

	farmerID, err := w.commitDecline(ctx, requestID, dec)
	if err != nil {
		w.countErr(err)
		return DeclineResult{}, fmt.Errorf("decline request %q: %w", requestID, err)
	}
	w.count("declined")

	w.logger.Info("delivery request declined",
		logx.String("event", "request_declined"),
		logx.String("request_id", requestID),
		logx.String("admin_id", dec.AdminID),
	)

	res := DeclineResult{RequestID: requestID, DeclinedAt: dec.DeclinedAt}
	hint := domain.RoutingHint{
		"openTarget": targetFarmer,
		"farmerId":   farmerID,
		"requestId":  requestID,
	}
	_, err = w.notifier.Notify(ctx, farmerID, titleDeclined, "Your delivery request was declined: "+dec.Reason, hint)
	if err != nil {
		w.logger.Warn("farmer notification failed",
			logx.String("request_id", requestID),
			logx.String("farmer_id", farmerID),
			logx.Err(err),
		)
		return res, nil
	}
	res.FarmerNotified = true
	return res, nil
}

func (w *Workflow) commitDecline(ctx context.Context, requestID string, dec domain.Decline) (string, error) {
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	var farmerID string
	err := w.store.WithTx(ctx, func(tx store.Tx) error {
		req, err := readRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		switch req.State() {
		case domain.RequestAccepted:
			return fmt.Errorf("request was already accepted: %w", apperr.ErrConflict)
		case domain.RequestDeclined:
			return fmt.Errorf("request was already declined: %w", apperr.ErrConflict)
		}

		fields, err := store.Encode(dec)
		if err != nil {
			return fmt.Errorf("encode decline: %w", err)
		}
		fields["isDeclined"] = true
		if err := tx.Update(ctx, domain.CollectionRequests, requestID, fields); err != nil {
			return fmt.Errorf("mark declined: %w", err)
		}
		farmerID = req.FarmerID
		return nil
	})
	return farmerID, err
}

func readRequest(ctx context.Context, r store.Reader, id string) (domain.DeliveryRequest, error) {
	doc, err := r.Get(ctx, domain.CollectionRequests, id)
	if err != nil {
		return domain.DeliveryRequest{}, err
	}
	var req domain.DeliveryRequest
	if err := store.Decode(doc, &req); err != nil {
		return domain.DeliveryRequest{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func readUser(ctx context.Context, r store.Reader, id string) (domain.User, error) {
	doc, err := r.Get(ctx, domain.CollectionUsers, id)
	if err != nil {
		return domain.User{}, err
	}
	var u domain.User
	if err := store.Decode(doc, &u); err != nil {
		return domain.User{}, fmt.Errorf("decode user: %w", err)
	}
	return u, nil
}
