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

type assignmentUsecase interface {
	AcceptRequest(ctx context.Context, requestID, haulerID string) (assignment.AcceptResult, error)
	DeclineRequest(ctx context.Context, requestID, reason, adminID string) (assignment.DeclineResult, error)
}

// NewAssignmentUsecase wires a Workflow into an assignmentUsecase.
func NewAssignmentUsecase(w *assignment.Workflow) assignmentUsecase {
	return w
}

type listingUsecase interface {
	PendingRequests(ctx context.Context) ([]listing.PendingRequest, error)
	ActiveDeliveries(ctx context.Context) ([]listing.DeliveryItem, error)
	History(ctx context.Context) ([]listing.DeliveryItem, error)
}

// NewListingUsecase wires a listing Service into a listingUsecase.
func NewListingUsecase(s *listing.Service) listingUsecase {
	return s
}

type trackingUsecase interface {
	Status(ctx context.Context, deliveryID string) (tracking.LiveStatus, error)
}

// NewTrackingUsecase wires a Tracker into a trackingUsecase.
func NewTrackingUsecase(t *tracking.Tracker) trackingUsecase {
	return t
}

type fleetUsecase interface {
	CreateVehicle(ctx context.Context, in fleet.VehicleInput) (domain.Vehicle, error)
	CreateHauler(ctx context.Context, in fleet.HaulerInput) (domain.User, error)
}

// NewFleetUsecase wires a fleet Service into a fleetUsecase.
func NewFleetUsecase(s *fleet.Service) fleetUsecase {
	return s
}

type notifyUsecase interface {
	Notify(ctx context.Context, recipientID, title, message string, hint domain.RoutingHint) (notify.Result, error)
}

// NewNotifyUsecase wires a Dispatcher into a notifyUsecase.
func NewNotifyUsecase(d *notify.Dispatcher) notifyUsecase {
	return d
}
