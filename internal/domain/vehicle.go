package domain

import (
	"strings"
	"time"
)

// Vehicle is a hauling business's registered vehicle.
type Vehicle struct {
	ID          string    `json:"id,omitempty"`
	BusinessID  string    `json:"businessId" validate:"required"`
	VehicleType string    `json:"vehicleType" validate:"required"`
	Model       string    `json:"model" validate:"required"`
	PlateNumber string    `json:"plateNumber" validate:"required,plate"`
	MaxWeightKg float64   `json:"maxWeightKg" validate:"gt=0"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Label renders the vehicle as "Model (PLATE)".
func (v Vehicle) Label() string {
	model := strings.TrimSpace(v.Model)
	plate := strings.TrimSpace(v.PlateNumber)
	switch {
	case model == "" && plate == "":
		return ""
	case plate == "":
		return model
	case model == "":
		return plate
	}
	return model + " (" + plate + ")"
}
