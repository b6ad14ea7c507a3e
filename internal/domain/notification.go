package domain

import (
	"strings"
	"time"
)

// RoutingHint tells the receiving client which screen to open and which ids it needs.
type RoutingHint map[string]any

// Notification is an in-app message addressed to one recipient.
type Notification struct {
	ID          string      `json:"id,omitempty"`
	RecipientID string      `json:"recipientId" validate:"required"`
	Title       string      `json:"title" validate:"required"`
	Message     string      `json:"message" validate:"required"`
	Data        RoutingHint `json:"data,omitempty"`
	IsRead      bool        `json:"isRead"`
	Timestamp   time.Time   `json:"timestamp"`
}

// NewNotification trims and validates a new unread notification.
func NewNotification(recipientID, title, message string, hint RoutingHint, now time.Time) (Notification, error) {
	n := Notification{
		RecipientID: strings.TrimSpace(recipientID),
		Title:       strings.TrimSpace(title),
		Message:     strings.TrimSpace(message),
		Data:        hint,
		Timestamp:   now,
	}
	if err := Struct(n); err != nil {
		return Notification{}, err
	}
	return n, nil
}
