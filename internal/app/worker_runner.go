package app

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
	"go.uber.org/dig"

	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/store"
	"farmnook-dispatch/internal/transport/kafka"
)

// WorkerRunner runs the tracking consumer.
type WorkerRunner struct {
	runFn func(*dig.Container) error
}

// NewWorkerRunner returns a new WorkerRunner.
func NewWorkerRunner() *WorkerRunner {
	return &WorkerRunner{runFn: runWorker}
}

// MustRun consumes until the container context is cancelled and panics on any other error.
func (r *WorkerRunner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	panic(err)
}

type workerIn struct {
	dig.In

	Ctx      context.Context
	Logger   logx.Logger
	Store    store.Store
	Redis    *redis.Client
	Consumer *kafka.Consumer
}

func runWorker(container *dig.Container) error {
	return container.Invoke(func(in workerIn) error {
		return workerRun(in.Ctx, in.Logger, in.Store, in.Redis, in.Consumer)
	})
}

func workerRun(ctx context.Context, logger logx.Logger, st store.Store, rdb *redis.Client, consumer *kafka.Consumer) error {
	if consumer == nil {
		return errors.New("kafka consumer is nil: set KAFKA_BROKERS, KAFKA_GROUP_ID and KAFKA_TRACKING_TOPIC")
	}
	defer closeWorker(logger, st, rdb, consumer)

	if rdb == nil {
		logger.Warn("tracking status is process-local; the API will not see it without redis")
	}
	logger.Info("tracking worker started")
	return consumer.Run(ctx)
}

func closeWorker(logger logx.Logger, st store.Store, rdb *redis.Client, consumer *kafka.Consumer) {
	if err := consumer.Close(); err != nil {
		logger.Error("kafka close failed", logx.Err(err))
	}
	closeResources(st, rdb, logger)
}
