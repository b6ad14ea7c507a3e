package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"

	"farmnook-dispatch/internal/config"
	"farmnook-dispatch/internal/http/handlers"
	"farmnook-dispatch/internal/http/middleware"
	"farmnook-dispatch/internal/http/router"
	"farmnook-dispatch/internal/lock"
	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/metrics"
	"farmnook-dispatch/internal/push"
	"farmnook-dispatch/internal/service/assignment"
	"farmnook-dispatch/internal/service/fleet"
	"farmnook-dispatch/internal/service/listing"
	"farmnook-dispatch/internal/service/notify"
	"farmnook-dispatch/internal/service/tracking"
	"farmnook-dispatch/internal/store"
)

// Service names used in log lines.
const (
	APIServiceName    = "farmnook-dispatch"
	WorkerServiceName = "farmnook-tracking-worker"
)

type dbConnectFunc func(context.Context, logx.Logger, string, int, time.Duration) (*pgxpool.Pool, error)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	dbConnect  dbConnectFunc
	loadConfig func() (*config.Config, error)
	logFatalf  func(string, ...interface{})
}

// NewContainerBuilder returns a builder wired to the real config and database.
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		dbConnect:  connectDbWithRetry,
		loadConfig: config.Load,
		logFatalf:  log.Fatalf,
	}
}

// WithDBConnect sets the database connection function.
func (b *ContainerBuilder) WithDBConnect(fn dbConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithConfig replaces config.Load.
func (b *ContainerBuilder) WithConfig(fn func() (*config.Config, error)) *ContainerBuilder {
	if fn != nil {
		b.loadConfig = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function.
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds the API container.
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

// MustBuildWorker builds the tracking worker container.
func (b *ContainerBuilder) MustBuildWorker(ctx context.Context) *dig.Container {
	container, err := b.buildWorker(ctx)
	if err != nil {
		b.logFatalf("failed to build worker container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx, b.loadConfig, APIServiceName); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerStorage(container, b.dbConnect); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if err := registerService(container); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return container, nil
}

func (b *ContainerBuilder) buildWorker(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx, b.loadConfig, WorkerServiceName); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerStorage(container, b.dbConnect); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if err := registerTracking(container); err != nil {
		return nil, fmt.Errorf("tracking: %w", err)
	}
	if err := registerWorker(container); err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}
	return container, nil
}

// MustBuildContainer builds the API container with default settings.
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

// MustBuildWorkerContainer builds the worker container with default settings.
func MustBuildWorkerContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuildWorker(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

type metricsOut struct {
	dig.Out

	RateLimited     prometheus.Counter     `name:"rate_limit_exceeded_total"`
	PushFailures    prometheus.Counter     `name:"push_failures_total"`
	Assignments     *prometheus.CounterVec `name:"assignments_total"`
	TrackingUpdates *prometheus.CounterVec `name:"tracking_updates_total"`
	HTTP            *middleware.HTTPMetrics
}

func newMetrics(reg *prometheus.Registry) (metricsOut, error) {
	out := metricsOut{
		RateLimited:     metrics.NewRateLimitExceededTotal(),
		PushFailures:    metrics.NewPushFailuresTotal(),
		Assignments:     metrics.NewAssignmentsTotal(),
		TrackingUpdates: metrics.NewTrackingUpdatesTotal(),
		HTTP:            middleware.NewHTTPMetrics(),
	}
	cs := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		out.RateLimited, out.PushFailures, out.Assignments, out.TrackingUpdates,
	}
	cs = append(cs, out.HTTP.Collectors()...)
	if err := metrics.Register(reg, cs...); err != nil {
		return metricsOut{}, err
	}
	return out, nil
}

func registerCore(
	container *dig.Container,
	ctx context.Context,
	loadConfig func() (*config.Config, error),
	service string,
) error {
	return provideAll(container,
		func() context.Context { return ctx },
		loadConfig,
		func(cfg *config.Config) logx.Logger {
			return logx.NewJSON(os.Stdout, cfg.LogLevel, service)
		},
		prometheus.NewRegistry,
		func(reg *prometheus.Registry) prometheus.Gatherer { return reg },
		newMetrics,
	)
}

type trackerIn struct {
	dig.In

	Config   *config.Config
	Store    store.Store
	Statuses tracking.StatusStore
	Logger   logx.Logger
	Updates  *prometheus.CounterVec `name:"tracking_updates_total"`
}

func registerTracking(container *dig.Container) error {
	return provideAll(container,
		newStatusStore,
		func(in trackerIn) *tracking.Tracker {
			return tracking.NewTracker(in.Store, in.Statuses, in.Updates, in.Config.Workflow.OperationTimeout, in.Logger)
		},
	)
}

type serviceIn struct {
	dig.In

	Config       *config.Config
	Store        store.Store
	Locker       lock.Locker
	Sender       push.Sender
	Logger       logx.Logger
	PushFailures prometheus.Counter     `name:"push_failures_total"`
	Assignments  *prometheus.CounterVec `name:"assignments_total"`
}

func registerService(container *dig.Container) error {
	if err := registerTracking(container); err != nil {
		return err
	}
	return provideAll(container,
		newLocker,
		newPushSender,
		func(in serviceIn) *notify.Dispatcher {
			return notify.NewDispatcher(in.Store, in.Sender, notify.Options{
				OperationTimeout: in.Config.Workflow.OperationTimeout,
				PushTimeout:      in.Config.Push.Timeout,
			}, in.PushFailures, in.Logger)
		},
		func(cfg *config.Config, st store.Store, logger logx.Logger) *listing.Service {
			return listing.NewService(st, cfg.Workflow.OperationTimeout, logger)
		},
		func(in serviceIn, d *notify.Dispatcher, l *listing.Service) *assignment.Workflow {
			w := assignment.NewWorkflow(in.Store, in.Locker, d, in.Assignments, in.Config.Workflow.OperationTimeout, in.Logger)
			w.OnAssigned(l.RequestAssigned)
			return w
		},
		func(cfg *config.Config, st store.Store) *fleet.Service {
			return fleet.NewService(st, fleet.BcryptHasher{}, cfg.Workflow.OperationTimeout)
		},
	)
}

func registerHTTP(container *dig.Container) error {
	serverProvider := func(cfg *config.Config, mux http.Handler) *http.Server {
		return &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	type secretOut struct {
		dig.Out
		Secret []byte `name:"jwt_secret"`
	}
	return provideAll(container,
		func(cfg *config.Config) secretOut { return secretOut{Secret: []byte(cfg.JWTSecret)} },
		newRateLimitClock,
		newRateLimiter,
		newRateLimitMiddleware,
		handlers.New,
		handlers.NewAssignmentUsecase,
		handlers.NewListingUsecase,
		handlers.NewTrackingUsecase,
		handlers.NewFleetUsecase,
		handlers.NewNotifyUsecase,
		handlers.NewRequestHandler,
		handlers.NewDeliveryHandler,
		handlers.NewFleetHandler,
		handlers.NewNotificationHandler,
		router.New,
		serverProvider,
	)
}
