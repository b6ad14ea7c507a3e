package app

import (
	"context"

	"go.uber.org/dig"

	"farmnook-dispatch/internal/config"
	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/service/tracking"
	"farmnook-dispatch/internal/transport/kafka"
)

// positionHandler feeds consumed positions to the tracker.
func positionHandler(t *tracking.Tracker) kafka.HandleFunc {
	return func(ctx context.Context, u tracking.PositionUpdate) error {
		_, err := t.Update(ctx, u)
		return err
	}
}

func newPositionConsumer(cfg *config.Config, logger logx.Logger, t *tracking.Tracker) (*kafka.Consumer, error) {
	return kafka.NewConsumer(logger, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, positionHandler(t))
}

func registerWorker(container *dig.Container) error {
	return provideAll(container, newPositionConsumer)
}
