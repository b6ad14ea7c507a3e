package handlers

import (
	"net/http"

	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/service/listing"
)

// DeliveryHandler serves delivery dashboards and live tracking.
type DeliveryHandler struct {
	listing  listingUsecase
	tracking trackingUsecase
	logger   logx.Logger
}

// NewDeliveryHandler creates a DeliveryHandler.
func NewDeliveryHandler(logger logx.Logger, l listingUsecase, t trackingUsecase) *DeliveryHandler {
	return &DeliveryHandler{listing: l, tracking: t, logger: logger}
}

// Active handles GET /deliveries/active.
func (h *DeliveryHandler) Active(w http.ResponseWriter, r *http.Request) {
	items, err := h.listing.ActiveDeliveries(r.Context())
	if err != nil {
		writeServiceError(h.logger, w, r, err, errorText{})
		return
	}
	writeDeliveries(h.logger, w, r, items)
}

// History handles GET /deliveries/history.
func (h *DeliveryHandler) History(w http.ResponseWriter, r *http.Request) {
	items, err := h.listing.History(r.Context())
	if err != nil {
		writeServiceError(h.logger, w, r, err, errorText{})
		return
	}
	writeDeliveries(h.logger, w, r, items)
}

// Tracking handles GET /deliveries/{id}/tracking.
// @Summary Latest hauler position and ETA for a delivery
// @Tags deliveries
// @Produce json
// @Param id path string true "delivery id"
// @Success 200 {object} tracking.LiveStatus
// @Failure 404 {object} ErrorResponse "no position reported yet"
// @Failure 500 {object} ErrorResponse
// @Router /deliveries/{id}/tracking [get]
func (h *DeliveryHandler) Tracking(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromURL(h.logger, w, r, "id")
	if !ok {
		return
	}
	st, err := h.tracking.Status(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err, errorText{notFound: "no live position for this delivery"})
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, st)
}

func writeDeliveries(logger logx.Logger, w http.ResponseWriter, r *http.Request, items []listing.DeliveryItem) {
	if items == nil {
		items = []listing.DeliveryItem{}
	}
	writeJSON(logger, w, r, http.StatusOK, deliveriesResponse{Deliveries: items})
}
