package handlers

import (
	"time"

	"farmnook-dispatch/internal/domain"
	"farmnook-dispatch/internal/service/listing"
	"farmnook-dispatch/internal/service/notify"
)

type acceptRequest struct {
	HaulerID string `json:"hauler_id"`
}

type declineRequest struct {
	Reason string `json:"reason"`
}

type notificationRequest struct {
	RecipientID string             `json:"recipient_id"`
	Title       string             `json:"title"`
	Message     string             `json:"message"`
	Data        domain.RoutingHint `json:"data,omitempty"`
}

type pendingResponse struct {
	Requests []listing.PendingRequest `json:"requests"`
}

type deliveriesResponse struct {
	Deliveries []listing.DeliveryItem `json:"deliveries"`
}

type notificationResponse struct {
	ID     string `json:"id"`
	Tokens int    `json:"tokens"`
	Pushed bool   `json:"pushed"`
}

type vehicleResponse struct {
	ID          string    `json:"id"`
	BusinessID  string    `json:"businessId"`
	VehicleType string    `json:"vehicleType"`
	Model       string    `json:"model"`
	PlateNumber string    `json:"plateNumber"`
	MaxWeightKg float64   `json:"maxWeightKg"`
	Label       string    `json:"label"`
	CreatedAt   time.Time `json:"createdAt"`
}

// haulerResponse never carries the password hash.
type haulerResponse struct {
	ID         string          `json:"id"`
	UserType   domain.UserType `json:"userType"`
	FirstName  string          `json:"firstName"`
	LastName   string          `json:"lastName"`
	Phone      string          `json:"phone"`
	Email      string          `json:"email,omitempty"`
	BusinessID string          `json:"businessId"`
	LicenseNo  string          `json:"licenseNo"`
	CreatedAt  *time.Time      `json:"createdAt,omitempty"`
}

func vehicleToResponse(v domain.Vehicle) vehicleResponse {
	return vehicleResponse{
		ID:          v.ID,
		BusinessID:  v.BusinessID,
		VehicleType: v.VehicleType,
		Model:       v.Model,
		PlateNumber: v.PlateNumber,
		MaxWeightKg: v.MaxWeightKg,
		Label:       v.Label(),
		CreatedAt:   v.CreatedAt,
	}
}

func haulerToResponse(u domain.User) haulerResponse {
	return haulerResponse{
		ID:         u.ID,
		UserType:   u.UserType,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Phone:      u.Phone,
		Email:      u.Email,
		BusinessID: u.BusinessID,
		LicenseNo:  u.LicenseNo,
		CreatedAt:  u.CreatedAt,
	}
}

func notificationToResponse(r notify.Result) notificationResponse {
	return notificationResponse{ID: r.NotificationID, Tokens: r.Tokens, Pushed: r.Pushed}
}
