package listing

import (
	"time"

	"farmnook-dispatch/internal/domain"
)

// Placeholders for joins that could not be resolved.
const (
	UnknownName    = "Unknown"
	UnknownVehicle = "N/A"
)

// PendingRequest is a pending delivery request with its display joins.
type PendingRequest struct {
	ID           string         `json:"id"`
	FarmerID     string         `json:"farmer_id"`
	FarmerName   string         `json:"farmer_name"`
	BusinessID   string         `json:"business_id,omitempty"`
	BusinessName string         `json:"business_name"`
	VehicleID    string         `json:"vehicle_id"`
	Vehicle      string         `json:"vehicle"`
	ProductType  string         `json:"product_type,omitempty"`
	Weight       float64        `json:"weight,omitempty"`
	Purpose      string         `json:"purpose,omitempty"`
	Pickup       *domain.LatLng `json:"pickup,omitempty"`
	Destination  *domain.LatLng `json:"destination,omitempty"`
	ScheduledAt  *time.Time     `json:"scheduled_at,omitempty"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
}

// DeliveryItem is a delivery joined with its request, people and vehicle.
type DeliveryItem struct {
	ID          string         `json:"id"`
	RequestID   string         `json:"request_id"`
	HaulerID    string         `json:"hauler_id"`
	HaulerName  string         `json:"hauler_name"`
	FarmerID    string         `json:"farmer_id,omitempty"`
	FarmerName  string         `json:"farmer_name"`
	VehicleID   string         `json:"vehicle_id"`
	Vehicle     string         `json:"vehicle"`
	Stage       string         `json:"stage"`
	ProductType string         `json:"product_type,omitempty"`
	Pickup      *domain.LatLng `json:"pickup,omitempty"`
	Destination *domain.LatLng `json:"destination,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
