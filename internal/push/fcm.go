package push

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
)

type multicaster interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCM sends notifications through Firebase Cloud Messaging.
type FCM struct {
	client multicaster
}

// NewFCM wraps a Firebase messaging client.
func NewFCM(client *messaging.Client) *FCM {
	return &FCM{client: client}
}

// Send delivers msg to every token. It fails only when no token was reached.
func (f *FCM) Send(ctx context.Context, msg Message) error {
	if len(msg.Tokens) == 0 {
		return ErrNoTokens
	}

	resp, err := f.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: msg.Tokens,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: stringify(msg.Data),
	})
	if err != nil {
		return fmt.Errorf("fcm: send multicast: %w", err)
	}
	if resp != nil && resp.SuccessCount == 0 && resp.FailureCount > 0 {
		return fmt.Errorf("fcm: all %d deliveries failed: %w", resp.FailureCount, firstError(resp))
	}
	return nil
}

// stringify converts data values for the string-only FCM payload. Nil
// values are dropped.
func stringify(data map[string]any) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

func firstError(resp *messaging.BatchResponse) error {
	for _, r := range resp.Responses {
		if r != nil && r.Error != nil {
			return r.Error
		}
	}
	return fmt.Errorf("unknown error")
}
