package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/dig"

	"farmnook-dispatch/internal/config"
	"farmnook-dispatch/internal/http/pprofserver"
	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/service/listing"
	"farmnook-dispatch/internal/store"
)

const shutdownTimeout = 15 * time.Second

// Runner runs the API server until its context is cancelled.
type Runner struct {
	runFn     func(*dig.Container) error
	logFatalf func(string, ...interface{})
}

// NewRunner returns a Runner for the API container.
func NewRunner() *Runner {
	return &Runner{runFn: run, logFatalf: log.Fatalf}
}

// MustRun blocks until shutdown; any failure other than cancellation is fatal.
func (r *Runner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	r.logFatalf("run error: %v", err)
}

// MustRun starts the API server using the provided DI container.
func MustRun(container *dig.Container) {
	NewRunner().MustRun(container)
}

type runIn struct {
	dig.In

	Ctx     context.Context
	Config  *config.Config
	Server  *http.Server
	Logger  logx.Logger
	Store   store.Store
	Listing *listing.Service
	Redis   *redis.Client
}

func run(container *dig.Container) error {
	return container.Invoke(serve)
}

func serve(in runIn) error {
	defer closeResources(in.Store, in.Redis, in.Logger)

	if err := in.Listing.Start(in.Ctx); err != nil {
		// handlers fall back to one-shot queries
		in.Logger.Warn("live listing sync unavailable", logx.Err(err))
	}
	defer in.Listing.Stop()

	errCh := make(chan error, 2)
	startServer(in.Server, in.Logger, "api", errCh)

	var debug *http.Server
	if in.Config.Pprof.Enabled {
		debug = pprofserver.New(pprofserver.Config{
			Addr: in.Config.Pprof.Addr,
			User: in.Config.Pprof.User,
			Pass: in.Config.Pprof.Pass,
		})
		startServer(debug, in.Logger, "pprof", errCh)
	}

	var runErr error
	select {
	case <-in.Ctx.Done():
		in.Logger.Info("shutting down", logx.String("service", APIServiceName))
	case runErr = <-errCh:
	}

	gracefulShutdown(in.Server, in.Logger)
	if debug != nil {
		gracefulShutdown(debug, in.Logger)
	}
	return runErr
}

func startServer(srv *http.Server, logger logx.Logger, name string, errCh chan<- error) {
	go func() {
		logger.Info("listening", logx.String("server", name), logx.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s listen: %w", name, err)
		}
	}()
}

func gracefulShutdown(srv *http.Server, logger logx.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", logx.String("addr", srv.Addr), logx.Err(err))
		_ = srv.Close()
	}
}

func closeResources(st store.Store, rdb *redis.Client, logger logx.Logger) {
	if st != nil {
		if err := st.Close(); err != nil {
			logger.Error("store close failed", logx.Err(err))
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("redis close failed", logx.Err(err))
		}
	}
}
