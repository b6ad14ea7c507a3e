package kafka

import (
	"strings"
	"time"

	"farmnook-dispatch/internal/domain"
	"farmnook-dispatch/internal/service/tracking"
)

// PositionDTO is the JSON payload a hauler app publishes on every GPS fix.
type PositionDTO struct {
	HaulerID   string    `json:"hauler_id"`
	DeliveryID string    `json:"delivery_id"`
	Latitude   *float64  `json:"latitude"`
	Longitude  *float64  `json:"longitude"`
	SpeedKmh   float64   `json:"speed_kmh"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ToUpdate converts the payload. A missing recorded_at falls back to
// fallback; a payload without both coordinates has no position.
func (d PositionDTO) ToUpdate(fallback time.Time) tracking.PositionUpdate {
	at := d.RecordedAt
	if at.IsZero() {
		at = fallback
	}
	var pos *domain.LatLng
	if d.Latitude != nil && d.Longitude != nil {
		pos = &domain.LatLng{Latitude: *d.Latitude, Longitude: *d.Longitude}
	}
	return tracking.PositionUpdate{
		HaulerID:   strings.TrimSpace(d.HaulerID),
		DeliveryID: strings.TrimSpace(d.DeliveryID),
		Position:   pos,
		SpeedKmh:   d.SpeedKmh,
		RecordedAt: at.UTC(),
	}
}
