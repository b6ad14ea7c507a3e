// Package tracking estimates hauler arrival times from live position updates.
package tracking

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"farmnook-dispatch/internal/domain"
	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/store"
)

// PositionUpdate is one position report of a hauler on a delivery. A nil
// Position means the report carried no fix.
type PositionUpdate struct {
	HaulerID   string
	DeliveryID string
	Position   *domain.LatLng
	SpeedKmh   float64
	RecordedAt time.Time
}

// Tracker recomputes the live status of a delivery on every position update.
type Tracker struct {
	store            store.Reader
	statuses         StatusStore
	updates          *prometheus.CounterVec
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time

	mu           sync.RWMutex
	destinations map[string]*domain.LatLng
}

// NewTracker creates a Tracker. updates may be nil.
func NewTracker(st store.Reader, statuses StatusStore, updates *prometheus.CounterVec, timeout time.Duration, logger logx.Logger) *Tracker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Tracker{
		store:            st,
		statuses:         statuses,
		updates:          updates,
		operationTimeout: timeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
		destinations:     make(map[string]*domain.LatLng),
	}
}

func (t *Tracker) count(outcome string) {
	if t.updates != nil {
		t.updates.WithLabelValues(outcome).Inc()
	}
}

func validateUpdate(u PositionUpdate) error {
	fe := domain.FieldErrors{}
	if strings.TrimSpace(u.DeliveryID) == "" {
		fe.Add("delivery_id", "is required")
	}
	if strings.TrimSpace(u.HaulerID) == "" {
		fe.Add("hauler_id", "is required")
	}
	if u.Position != nil {
		if err := domain.Struct(*u.Position); err != nil {
			fe.Add("position", "is out of range")
		}
	}
	if u.SpeedKmh < 0 {
		fe.Add("speed_kmh", "must not be negative")
	}
	return fe.OrNil()
}

// Update computes distance and ETA for u and stores the result. Estimates
// are not smoothed across updates.
func (t *Tracker) Update(ctx context.Context, u PositionUpdate) (LiveStatus, error) {
	if err := validateUpdate(u); err != nil {
		t.count("invalid")
		return LiveStatus{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.operationTimeout)
	defer cancel()

	dest, err := t.destination(ctx, u.DeliveryID)
	if err != nil {
		t.count("failed")
		return LiveStatus{}, fmt.Errorf("resolve destination of %q: %w", u.DeliveryID, err)
	}

	recorded := u.RecordedAt
	if recorded.IsZero() {
		recorded = t.now()
	}
	pos := u.Position
	s := LiveStatus{
		DeliveryID:  u.DeliveryID,
		HaulerID:    u.HaulerID,
		Position:    pos,
		Destination: dest,
		SpeedKmh:    u.SpeedKmh,
		RecordedAt:  recorded,
		UpdatedAt:   t.now(),
	}
	if pos != nil && dest != nil {
		d := Haversine(*pos, *dest)
		s.DistanceKm = &d
	}
	minutes, ok := ETA(pos, dest, u.SpeedKmh)
	if ok {
		s.ETAMinutes = &minutes
	}
	s.ETA = FormatETA(minutes, ok)

	if err := t.statuses.Save(ctx, s); err != nil {
		t.count("failed")
		return LiveStatus{}, err
	}
	t.count("ok")

	t.logger.Debug("live status updated",
		logx.String("delivery_id", s.DeliveryID),
		logx.String("hauler_id", s.HaulerID),
		logx.String("eta", s.ETA),
	)
	return s, nil
}

// Status returns the last computed status of a delivery.
func (t *Tracker) Status(ctx context.Context, deliveryID string) (LiveStatus, error) {
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return LiveStatus{}, domain.FieldErrors{"delivery_id": "is required"}
	}
	ctx, cancel := context.WithTimeout(ctx, t.operationTimeout)
	defer cancel()
	return t.statuses.Load(ctx, deliveryID)
}

// destination returns the drop-off location of the delivery's request.
// A request without a destination yields nil without error.
func (t *Tracker) destination(ctx context.Context, deliveryID string) (*domain.LatLng, error) {
	t.mu.RLock()
	dest, ok := t.destinations[deliveryID]
	t.mu.RUnlock()
	if ok {
		return dest, nil
	}

	doc, err := t.store.Get(ctx, domain.CollectionDeliveries, deliveryID)
	if err != nil {
		return nil, err
	}
	var d domain.Delivery
	if err := store.Decode(doc, &d); err != nil {
		return nil, fmt.Errorf("decode delivery: %w", err)
	}

	doc, err = t.store.Get(ctx, domain.CollectionRequests, d.RequestID)
	if err != nil {
		return nil, err
	}
	var req domain.DeliveryRequest
	if err := store.Decode(doc, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}

	t.mu.Lock()
	t.destinations[deliveryID] = req.DestinationLocation
	t.mu.Unlock()
	return req.DestinationLocation, nil
}
