package handlers

import (
	"net/http"

	"farmnook-dispatch/internal/logx"
)

// NotificationHandler sends ad-hoc notifications on behalf of an admin.
type NotificationHandler struct {
	notify notifyUsecase
	logger logx.Logger
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(logger logx.Logger, n notifyUsecase) *NotificationHandler {
	return &NotificationHandler{notify: n, logger: logger}
}

// Create handles POST /notifications. A failed push still returns 201;
// only a failed write of the notification record is an error.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if !decodeJSON(h.logger, w, r, &req) {
		return
	}
	res, err := h.notify.Notify(r.Context(), req.RecipientID, req.Title, req.Message, req.Data)
	if err != nil {
		writeServiceError(h.logger, w, r, err, errorText{})
		return
	}
	writeJSON(h.logger, w, r, http.StatusCreated, notificationToResponse(res))
}
