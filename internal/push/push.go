// Package push delivers device push notifications through OneSignal or
// Firebase Cloud Messaging.
package push

import (
	"context"
	"errors"
)

// Message is one push notification addressed to a set of device tokens.
type Message struct {
	Tokens []string
	Title  string
	Body   string
	Data   map[string]any
}

// Sender delivers a push message. Implementations do not retry.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ErrNoTokens is returned for a message without recipients.
var ErrNoTokens = errors.New("push: no device tokens")

type nopSender struct{}

// Nop returns a Sender that drops every message.
func Nop() Sender { return nopSender{} }

func (nopSender) Send(context.Context, Message) error { return nil }
