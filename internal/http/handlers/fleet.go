package handlers

import (
	"net/http"

	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/service/fleet"
)

// FleetHandler registers vehicles and hauler accounts.
type FleetHandler struct {
	fleet  fleetUsecase
	logger logx.Logger
}

// NewFleetHandler creates a FleetHandler.
func NewFleetHandler(logger logx.Logger, f fleetUsecase) *FleetHandler {
	return &FleetHandler{fleet: f, logger: logger}
}

// CreateVehicle handles POST /vehicles.
// @Summary Register a vehicle
// @Tags fleet
// @Accept json
// @Produce json
// @Param request body fleet.VehicleInput true "vehicle"
// @Success 201 {object} vehicleResponse
// @Failure 400 {object} ErrorResponse "invalid input"
// @Failure 409 {object} ErrorResponse "plate already registered"
// @Router /vehicles [post]
func (h *FleetHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var in fleet.VehicleInput
	if !decodeJSON(h.logger, w, r, &in) {
		return
	}
	v, err := h.fleet.CreateVehicle(r.Context(), in)
	if err != nil {
		writeServiceError(h.logger, w, r, err, errorText{conflict: "plate number already registered"})
		return
	}
	writeJSON(h.logger, w, r, http.StatusCreated, vehicleToResponse(v))
}

// CreateHauler handles POST /haulers.
// @Summary Register a hauler account
// @Tags fleet
// @Accept json
// @Produce json
// @Param request body fleet.HaulerInput true "hauler"
// @Success 201 {object} haulerResponse
// @Failure 400 {object} ErrorResponse "invalid input"
// @Router /haulers [post]
func (h *FleetHandler) CreateHauler(w http.ResponseWriter, r *http.Request) {
	var in fleet.HaulerInput
	if !decodeJSON(h.logger, w, r, &in) {
		return
	}
	u, err := h.fleet.CreateHauler(r.Context(), in)
	if err != nil {
		writeServiceError(h.logger, w, r, err, errorText{})
		return
	}
	writeJSON(h.logger, w, r, http.StatusCreated, haulerToResponse(u))
}
