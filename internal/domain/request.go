package domain

import (
	"strings"
	"time"
)

// RequestState is the derived lifecycle state of a delivery request.
type RequestState string

// Request states. Accepted and Declined are terminal.
const (
	RequestPending  RequestState = "pending"
	RequestAccepted RequestState = "accepted"
	RequestDeclined RequestState = "declined"
)

// DeliveryRequest is a pickup/drop-off request from a farmer to a hauling business.
type DeliveryRequest struct {
	ID                  string     `json:"id" validate:"required"`
	FarmerID            string     `json:"farmerId" validate:"required"`
	BusinessID          string     `json:"businessId,omitempty"`
	VehicleID           string     `json:"vehicleId" validate:"required"`
	PickupLocation      *LatLng    `json:"pickupLocation,omitempty"`
	DestinationLocation *LatLng    `json:"destinationLocation,omitempty"`
	ProductType         string     `json:"productType,omitempty"`
	Weight              float64    `json:"weight,omitempty"`
	Purpose             string     `json:"purpose,omitempty"`
	ScheduledTime       *time.Time `json:"scheduledTime,omitempty" validate:"required"`
	IsAccepted          bool       `json:"isAccepted"`
	IsDeclined          bool       `json:"isDeclined,omitempty"`
	DeclineReason       string     `json:"declineReason,omitempty"`
	DeclinedAt          *time.Time `json:"declinedAt,omitempty"`
	DeclinedBy          string     `json:"declinedBy,omitempty"`
	CreatedAt           *time.Time `json:"createdAt,omitempty"`
}

// State derives the request's lifecycle state from its flags.
func (r DeliveryRequest) State() RequestState {
	switch {
	case r.IsDeclined:
		return RequestDeclined
	case r.IsAccepted:
		return RequestAccepted
	default:
		return RequestPending
	}
}

// ValidateForAssignment checks the fields the assignment workflow relies on.
func (r DeliveryRequest) ValidateForAssignment() error {
	return Struct(r)
}

// Decline carries the fields written when an admin declines a request.
type Decline struct {
	Reason     string    `json:"declineReason" validate:"required"`
	AdminID    string    `json:"declinedBy" validate:"required"`
	DeclinedAt time.Time `json:"declinedAt"`
}

// NewDecline trims and validates a decline decision.
func NewDecline(reason, adminID string, at time.Time) (Decline, error) {
	d := Decline{
		Reason:     strings.TrimSpace(reason),
		AdminID:    strings.TrimSpace(adminID),
		DeclinedAt: at,
	}
	if err := Struct(d); err != nil {
		return Decline{}, err
	}
	return d, nil
}
