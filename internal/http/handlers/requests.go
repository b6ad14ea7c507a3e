package handlers

import (
	"net/http"

	"farmnook-dispatch/internal/http/middleware"
	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/service/listing"
)

// RequestHandler serves delivery request listing and decisions.
type RequestHandler struct {
	assign  assignmentUsecase
	listing listingUsecase
	logger  logx.Logger
}

// NewRequestHandler creates a RequestHandler.
func NewRequestHandler(logger logx.Logger, a assignmentUsecase, l listingUsecase) *RequestHandler {
	return &RequestHandler{assign: a, listing: l, logger: logger}
}

var requestErrors = errorText{
	notFound: "delivery request not found",
	conflict: "delivery request is no longer pending",
}

// Pending handles GET /requests/pending.
// @Summary List pending delivery requests
// @Tags requests
// @Produce json
// @Success 200 {object} pendingResponse
// @Failure 500 {object} ErrorResponse
// @Router /requests/pending [get]
func (h *RequestHandler) Pending(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.listing.PendingRequests(r.Context())
	if err != nil {
		writeServiceError(h.logger, w, r, err, requestErrors)
		return
	}
	if reqs == nil {
		reqs = []listing.PendingRequest{}
	}
	writeJSON(h.logger, w, r, http.StatusOK, pendingResponse{Requests: reqs})
}

// Accept handles POST /requests/{id}/accept.
// @Summary Accept a request and assign a hauler
// @Tags requests
// @Accept json
// @Produce json
// @Param id path string true "request id"
// @Param request body acceptRequest true "hauler to assign"
// @Success 200 {object} assignment.AcceptResult
// @Failure 400 {object} ErrorResponse "invalid input"
// @Failure 404 {object} ErrorResponse "request not found"
// @Failure 409 {object} ErrorResponse "request already decided"
// @Failure 500 {object} ErrorResponse
// @Router /requests/{id}/accept [post]
func (h *RequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromURL(h.logger, w, r, "id")
	if !ok {
		return
	}
	var req acceptRequest
	if !decodeJSON(h.logger, w, r, &req) {
		return
	}

	res, err := h.assign.AcceptRequest(r.Context(), id, req.HaulerID)
	if err != nil {
		writeServiceError(h.logger, w, r, err, requestErrors)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, res)
}

// Decline handles POST /requests/{id}/decline. The declining admin is the token subject.
// @Summary Decline a request
// @Tags requests
// @Accept json
// @Produce json
// @Param id path string true "request id"
// @Param request body declineRequest true "decline reason"
// @Success 200 {object} assignment.DeclineResult
// @Failure 400 {object} ErrorResponse "invalid input"
// @Failure 404 {object} ErrorResponse "request not found"
// @Failure 409 {object} ErrorResponse "request already decided"
// @Failure 500 {object} ErrorResponse
// @Router /requests/{id}/decline [post]
func (h *RequestHandler) Decline(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromURL(h.logger, w, r, "id")
	if !ok {
		return
	}
	var req declineRequest
	if !decodeJSON(h.logger, w, r, &req) {
		return
	}

	res, err := h.assign.DeclineRequest(r.Context(), id, req.Reason, middleware.AdminID(r.Context()))
	if err != nil {
		writeServiceError(h.logger, w, r, err, requestErrors)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, res)
}
