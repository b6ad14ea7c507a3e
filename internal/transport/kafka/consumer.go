// Package kafka consumes hauler position events into live tracking.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/service/tracking"
)

// HandleFunc processes one position update.
type HandleFunc func(context.Context, tracking.PositionUpdate) error

var newConsumerGroup = sarama.NewConsumerGroup

const retryBackoff = time.Second

// Consumer wraps a sarama consumer group and feeds updates to a handler.
type Consumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler HandleFunc
	logger  logx.Logger
	now     func() time.Time
}

// NewConsumer returns nil, nil when brokers, group or topic are not configured.
func NewConsumer(logger logx.Logger, brokers []string, groupID, topic string, h HandleFunc) (*Consumer, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" || strings.TrimSpace(groupID) == "" {
		logger.Warn("kafka not configured, position consumer disabled")
		return nil, nil
	}

	cfg := sarama.NewConfig()
	// stale positions are useless; start from the tip
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true

	group, err := newConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer group %q: %w", groupID, err)
	}

	return &Consumer{
		group:   group,
		topic:   topic,
		handler: h,
		logger:  logger.With(logx.String("topic", topic), logx.String("group", groupID)),
		now:     time.Now,
	}, nil
}

// Run consumes until ctx is done. Group rebalances and broker errors are retried.
func (c *Consumer) Run(ctx context.Context) error {
	if c == nil {
		return nil
	}

	go func() {
		for err := range c.group.Errors() {
			c.logger.Warn("kafka group error", logx.Err(err))
		}
	}()

	h := &groupHandler{c: c}
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("kafka consume failed, retrying", logx.Err(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff):
			}
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	if c == nil {
		return nil
	}
	return c.group.Close()
}

type groupHandler struct{ c *Consumer }

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks skipped and handled messages. A transient handler
// error ends the claim without marking so the message is redelivered.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.handle(sess.Context(), msg); err != nil {
			if !isPermanent(err) {
				h.c.logger.Error("kafka handle failed, will retry",
					logx.Int("partition", int(msg.Partition)),
					logx.Any("offset", msg.Offset),
					logx.Err(err),
				)
				return err
			}
			h.c.logger.Warn("kafka message skipped",
				logx.Int("partition", int(msg.Partition)),
				logx.Any("offset", msg.Offset),
				logx.Err(err),
			)
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}

func (h *groupHandler) handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var dto PositionDTO
	if err := json.Unmarshal(msg.Value, &dto); err != nil {
		return Permanent(fmt.Errorf("decode position: %w", err))
	}
	fallback := msg.Timestamp
	if fallback.IsZero() {
		fallback = h.c.now()
	}
	return h.c.handler(ctx, dto.ToUpdate(fallback))
}
