// Package listing serves the admin lists of pending requests, active
// deliveries and delivery history from live-synced caches.
package listing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"farmnook-dispatch/internal/domain"
	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/service/assignment"
	"farmnook-dispatch/internal/store"
	"farmnook-dispatch/internal/view"
)

// Service maintains the listing caches and renders joined views.
type Service struct {
	store            store.Store
	operationTimeout time.Duration
	logger           logx.Logger

	pending *view.Cache[domain.DeliveryRequest]
	active  *view.Cache[domain.Delivery]
	history *view.Cache[domain.Delivery]

	mu    sync.Mutex
	stops []func()
}

// NewService creates a listing Service. Call Start to begin live syncing.
func NewService(st store.Store, timeout time.Duration, logger logx.Logger) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		store:            st,
		operationTimeout: timeout,
		logger:           logger,
		pending:          view.NewCache(view.DecodeAs[domain.DeliveryRequest]()),
		active:           view.NewCache(decodeDelivery),
		history:          view.NewCache(decodeDelivery),
	}
}

func decodeDelivery(doc store.Document) (domain.Delivery, error) {
	var d domain.Delivery
	if err := store.Decode(doc, &d); err != nil {
		return domain.Delivery{}, err
	}
	if d.ID == "" {
		d.ID = doc.ID
	}
	return d, nil
}

func pendingQuery() store.Query {
	return store.Query{
		Collection: domain.CollectionRequests,
		Where:      []store.Filter{store.Eq("isAccepted", false)},
	}
}

func deliveriesQuery(done bool) store.Query {
	return store.Query{
		Collection: domain.CollectionDeliveries,
		Where:      []store.Filter{store.Eq("isDone", done)},
	}
}

// Start subscribes the caches to the store. The subscriptions end when ctx
// is done or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stops) > 0 {
		return nil
	}

	pendingStop, err := view.Sync(ctx, s.store, pendingQuery(), s.pending, s.logger)
	if err != nil {
		return fmt.Errorf("sync pending requests: %w", err)
	}
	activeStop, err := view.Sync(ctx, s.store, deliveriesQuery(false), s.active, s.logger)
	if err != nil {
		pendingStop()
		return fmt.Errorf("sync active deliveries: %w", err)
	}
	historyStop, err := view.Sync(ctx, s.store, deliveriesQuery(true), s.history, s.logger)
	if err != nil {
		pendingStop()
		activeStop()
		return fmt.Errorf("sync delivery history: %w", err)
	}
	s.stops = []func(){pendingStop, activeStop, historyStop}
	return nil
}

// Stop ends all subscriptions.
func (s *Service) Stop() {
	s.mu.Lock()
	stops := s.stops
	s.stops = nil
	s.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
}

// RequestAssigned drops an accepted request from the pending view without
// waiting for the store to report the change.
func (s *Service) RequestAssigned(_ context.Context, a assignment.Assignment) {
	s.pending.Remove(a.RequestID)
}

// refresh loads q once when the cache has not been fed by a subscription yet.
func refresh[T any](ctx context.Context, st store.Store, q store.Query, c *view.Cache[T]) error {
	if c.Ready() {
		return nil
	}
	docs, err := st.Query(ctx, q)
	if err != nil {
		return err
	}
	c.Apply(docs)
	return nil
}

// PendingRequests lists requests that are neither accepted nor declined,
// earliest scheduled first.
func (s *Service) PendingRequests(ctx context.Context) ([]PendingRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	if err := refresh(ctx, s.store, pendingQuery(), s.pending); err != nil {
		return nil, fmt.Errorf("load pending requests: %w", err)
	}

	var reqs []domain.DeliveryRequest
	for _, r := range s.pending.List() {
		if r.State() == domain.RequestPending {
			reqs = append(reqs, r)
		}
	}

	userIDs := make([]string, 0, 2*len(reqs))
	vehicleIDs := make([]string, 0, len(reqs))
	for _, r := range reqs {
		userIDs = append(userIDs, r.FarmerID, r.BusinessID)
		vehicleIDs = append(vehicleIDs, r.VehicleID)
	}
	users := s.users(ctx, userIDs)
	vehicles := s.vehicles(ctx, vehicleIDs)

	out := make([]PendingRequest, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, PendingRequest{
			ID:           r.ID,
			FarmerID:     r.FarmerID,
			FarmerName:   nameOf(users, r.FarmerID),
			BusinessID:   r.BusinessID,
			BusinessName: nameOf(users, r.BusinessID),
			VehicleID:    r.VehicleID,
			Vehicle:      labelOf(vehicles, r.VehicleID),
			ProductType:  r.ProductType,
			Weight:       r.Weight,
			Purpose:      r.Purpose,
			Pickup:       r.PickupLocation,
			Destination:  r.DestinationLocation,
			ScheduledAt:  r.ScheduledTime,
			CreatedAt:    r.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ScheduledAt, out[j].ScheduledAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Before(*b)
	})
	return out, nil
}

// ActiveDeliveries lists deliveries not yet done, newest first.
func (s *Service) ActiveDeliveries(ctx context.Context) ([]DeliveryItem, error) {
	return s.deliveries(ctx, false, s.active)
}

// History lists completed deliveries, newest first.
func (s *Service) History(ctx context.Context) ([]DeliveryItem, error) {
	return s.deliveries(ctx, true, s.history)
}

func (s *Service) deliveries(ctx context.Context, done bool, c *view.Cache[domain.Delivery]) ([]DeliveryItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	if err := refresh(ctx, s.store, deliveriesQuery(done), c); err != nil {
		return nil, fmt.Errorf("load deliveries: %w", err)
	}
	ds := c.List()

	requestIDs := make([]string, 0, len(ds))
	for _, d := range ds {
		requestIDs = append(requestIDs, d.RequestID)
	}
	requests := s.requests(ctx, requestIDs)

	userIDs := make([]string, 0, 2*len(ds))
	vehicleIDs := make([]string, 0, len(ds))
	for _, d := range ds {
		userIDs = append(userIDs, d.HaulerAssignedID, requests[d.RequestID].FarmerID)
		vehicleIDs = append(vehicleIDs, d.VehicleID)
	}
	users := s.users(ctx, userIDs)
	vehicles := s.vehicles(ctx, vehicleIDs)

	out := make([]DeliveryItem, 0, len(ds))
	for _, d := range ds {
		req := requests[d.RequestID]
		out = append(out, DeliveryItem{
			ID:          d.ID,
			RequestID:   d.RequestID,
			HaulerID:    d.HaulerAssignedID,
			HaulerName:  nameOf(users, d.HaulerAssignedID),
			FarmerID:    req.FarmerID,
			FarmerName:  nameOf(users, req.FarmerID),
			VehicleID:   d.VehicleID,
			Vehicle:     labelOf(vehicles, d.VehicleID),
			Stage:       d.Stage(),
			ProductType: req.ProductType,
			Pickup:      req.PickupLocation,
			Destination: req.DestinationLocation,
			CreatedAt:   d.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// fetch reads the unique non-empty ids of collection. A failed batch is
// logged and leaves its ids unresolved.
func (s *Service) fetch(ctx context.Context, collection string, ids []string) []store.Document {
	var out []store.Document
	for _, batch := range store.Chunk(ids, store.MaxBatch) {
		docs, err := s.store.GetAll(ctx, collection, batch)
		if err != nil {
			s.logger.Warn("join lookup failed",
				logx.String("collection", collection),
				logx.Int("ids", len(batch)),
				logx.Err(err),
			)
			continue
		}
		out = append(out, docs...)
	}
	return out
}

func (s *Service) users(ctx context.Context, ids []string) map[string]domain.User {
	out := make(map[string]domain.User)
	for _, doc := range s.fetch(ctx, domain.CollectionUsers, ids) {
		var u domain.User
		if err := store.Decode(doc, &u); err == nil {
			out[doc.ID] = u
		}
	}
	return out
}

func (s *Service) vehicles(ctx context.Context, ids []string) map[string]domain.Vehicle {
	out := make(map[string]domain.Vehicle)
	for _, doc := range s.fetch(ctx, domain.CollectionVehicles, ids) {
		var v domain.Vehicle
		if err := store.Decode(doc, &v); err == nil {
			out[doc.ID] = v
		}
	}
	return out
}

func (s *Service) requests(ctx context.Context, ids []string) map[string]domain.DeliveryRequest {
	out := make(map[string]domain.DeliveryRequest)
	for _, doc := range s.fetch(ctx, domain.CollectionRequests, ids) {
		var r domain.DeliveryRequest
		if err := store.Decode(doc, &r); err == nil {
			out[doc.ID] = r
		}
	}
	return out
}

func nameOf(users map[string]domain.User, id string) string {
	if u, ok := users[id]; ok {
		if name := u.DisplayName(); name != "" {
			return name
		}
	}
	return UnknownName
}

func labelOf(vehicles map[string]domain.Vehicle, id string) string {
	if v, ok := vehicles[id]; ok {
		if label := v.Label(); label != "" {
			return label
		}
	}
	return UnknownVehicle
}
