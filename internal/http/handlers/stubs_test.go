package handlers

import (
	"context"

	"farmnook-dispatch/internal/domain"
	"farmnook-dispatch/internal/service/assignment"
	"farmnook-dispatch/internal/service/fleet"
	"farmnook-dispatch/internal/service/listing"
	"farmnook-dispatch/internal/service/notify"
	"farmnook-dispatch/internal/service/tracking"
)

type stubAssignment struct {
	acceptFn  func(ctx context.Context, requestID, haulerID string) (assignment.AcceptResult, error)
	declineFn func(ctx context.Context, requestID, reason, adminID string) (assignment.DeclineResult, error)
}

func (s *stubAssignment) AcceptRequest(ctx context.Context, requestID, haulerID string) (assignment.AcceptResult, error) {
	if s.acceptFn == nil {
		panic("AcceptRequest not expected in this test")
	}
	return s.acceptFn(ctx, requestID, haulerID)
}

func (s *stubAssignment) DeclineRequest(ctx context.Context, requestID, reason, adminID string) (assignment.DeclineResult, error) {
	if s.declineFn == nil {
		panic("DeclineRequest not expected in this test")
	}
	return s.declineFn(ctx, requestID, reason, adminID)
}

type stubListing struct {
	pending []listing.PendingRequest
	active  []listing.DeliveryItem
	history []listing.DeliveryItem
	err     error
}

func (s *stubListing) PendingRequests(context.Context) ([]listing.PendingRequest, error) {
	return s.pending, s.err
}

func (s *stubListing) ActiveDeliveries(context.Context) ([]listing.DeliveryItem, error) {
	return s.active, s.err
}

func (s *stubListing) History(context.Context) ([]listing.DeliveryItem, error) {
	return s.history, s.err
}

type stubTracking struct {
	statusFn func(ctx context.Context, deliveryID string) (tracking.LiveStatus, error)
}

func (s *stubTracking) Status(ctx context.Context, deliveryID string) (tracking.LiveStatus, error) {
	return s.statusFn(ctx, deliveryID)
}

type stubFleet struct {
	vehicleFn func(ctx context.Context, in fleet.VehicleInput) (domain.Vehicle, error)
	haulerFn  func(ctx context.Context, in fleet.HaulerInput) (domain.User, error)
}

func (s *stubFleet) CreateVehicle(ctx context.Context, in fleet.VehicleInput) (domain.Vehicle, error) {
	if s.vehicleFn == nil {
		panic("CreateVehicle not expected in this test")
	}
	return s.vehicleFn(ctx, in)
}

func (s *stubFleet) CreateHauler(ctx context.Context, in fleet.HaulerInput) (domain.User, error) {
	if s.haulerFn == nil {
		panic("CreateHauler not expected in this test")
	}
	return s.haulerFn(ctx, in)
}

type stubNotify struct {
	notifyFn func(ctx context.Context, recipientID, title, message string, hint domain.RoutingHint) (notify.Result, error)
}

func (s *stubNotify) Notify(ctx context.Context, recipientID, title, message string, hint domain.RoutingHint) (notify.Result, error) {
	return s.notifyFn(ctx, recipientID, title, message, hint)
}
