package domain

import "time"

// Milestones are the progressive flags of a delivery. Once true, a flag never reverts.
type Milestones struct {
	IsStarted            bool `json:"isStarted"`
	ArrivedAtPickup      bool `json:"arrivedAtPickup"`
	IsOnDelivery         bool `json:"isOnDelivery"`
	ArrivedAtDestination bool `json:"arrivedAtDestination"`
	IsDone               bool `json:"isDone"`
	IsValidated          bool `json:"isValidated"`
}

func (m Milestones) flags() []struct {
	name string
	set  bool
} {
	return []struct {
		name string
		set  bool
	}{
		{"isStarted", m.IsStarted},
		{"arrivedAtPickup", m.ArrivedAtPickup},
		{"isOnDelivery", m.IsOnDelivery},
		{"arrivedAtDestination", m.ArrivedAtDestination},
		{"isDone", m.IsDone},
		{"isValidated", m.IsValidated},
	}
}

// Advance returns next if it does not revert any milestone already reached.
func (m Milestones) Advance(next Milestones) (Milestones, error) {
	cur, nxt := m.flags(), next.flags()
	for i := range cur {
		if cur[i].set && !nxt[i].set {
			return m, FieldErrors{cur[i].name: "cannot revert a reached milestone"}
		}
	}
	return next, nil
}

// Stage returns the name of the furthest milestone reached, or "assigned".
func (m Milestones) Stage() string {
	stage := "assigned"
	for _, f := range m.flags() {
		if f.set {
			stage = f.name
		}
	}
	return stage
}

// Delivery is the operational record of an accepted request.
type Delivery struct {
	ID               string    `json:"deliveryId"`
	RequestID        string    `json:"requestId" validate:"required"`
	HaulerAssignedID string    `json:"haulerAssignedId" validate:"required"`
	VehicleID        string    `json:"vehicleId" validate:"required"`
	CreatedAt        time.Time `json:"createdAt"`
	Milestones
}

// NewDelivery builds the initial delivery for an accepted request, all milestones unset.
func NewDelivery(id string, req DeliveryRequest, haulerID string, now time.Time) (Delivery, error) {
	d := Delivery{
		ID:               id,
		RequestID:        req.ID,
		HaulerAssignedID: haulerID,
		VehicleID:        req.VehicleID,
		CreatedAt:        now,
	}
	if id == "" {
		return Delivery{}, FieldErrors{"deliveryId": "is required"}
	}
	if err := Struct(d); err != nil {
		return Delivery{}, err
	}
	return d, nil
}
