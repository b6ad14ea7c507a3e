package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/go-redis/redis/v8"
	"go.uber.org/dig"

	"farmnook-dispatch/internal/config"
	"farmnook-dispatch/internal/firebasestore"
	"farmnook-dispatch/internal/lock"
	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/push"
	"farmnook-dispatch/internal/repository"
	"farmnook-dispatch/internal/service/tracking"
	"farmnook-dispatch/internal/store"
	"farmnook-dispatch/internal/store/memstore"
)

// Redis key prefixes.
const (
	lockKeyPrefix   = "farmnook:lock:request:"
	statusKeyPrefix = "farmnook:tracking:delivery:"
)

// firebaseLoader initializes the Firebase app at most once, on first use.
type firebaseLoader func() (*firebase.App, error)

func newFirebaseLoader(ctx context.Context, cfg *config.Config) firebaseLoader {
	return sync.OnceValues(func() (*firebase.App, error) {
		return firebasestore.NewApp(ctx, firebasestore.Config{
			ProjectID:         cfg.Firebase.ProjectID,
			CredentialsFile:   cfg.Firebase.CredentialsFile,
			CredentialsBase64: cfg.Firebase.CredentialsBase64,
		})
	})
}

type storeIn struct {
	dig.In

	Ctx      context.Context
	Config   *config.Config
	Logger   logx.Logger
	Firebase firebaseLoader
}

func registerStorage(container *dig.Container, dbConnect dbConnectFunc) error {
	newStore := func(in storeIn) (store.Store, error) {
		switch in.Config.StoreDriver {
		case config.StoreDriverPostgres:
			pool, err := dbConnect(in.Ctx, in.Logger, in.Config.DB.DSN(), 10, time.Second)
			if err != nil {
				return nil, err
			}
			if err := repository.EnsureSchema(in.Ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("ensure schema: %w", err)
			}
			return repository.NewDocumentRepo(pool, in.Logger), nil
		case config.StoreDriverFirestore:
			fb, err := in.Firebase()
			if err != nil {
				return nil, err
			}
			fs, err := firebasestore.New(in.Ctx, fb, in.Logger)
			if err != nil {
				return nil, err
			}
			return fs, nil
		case config.StoreDriverMemory:
			in.Logger.Warn("using in-memory store, data is lost on restart")
			return memstore.New(), nil
		default:
			return nil, fmt.Errorf("unknown store driver %q", in.Config.StoreDriver)
		}
	}
	return provideAll(container,
		newFirebaseLoader,
		newStore,
		newRedisClient,
	)
}

// newRedisClient returns nil when Redis is not configured.
func newRedisClient(ctx context.Context, cfg *config.Config, logger logx.Logger) (*redis.Client, error) {
	if !cfg.Redis.Enabled() {
		logger.Warn("redis not configured, using process-local lock and tracking status")
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}
	logger.Info("redis connected", logx.String("addr", cfg.Redis.Addr))
	return client, nil
}

func newLocker(cfg *config.Config, client *redis.Client) lock.Locker {
	if client == nil {
		return lock.Nop()
	}
	return lock.NewRedis(client, lockKeyPrefix, cfg.Redis.LockTTL)
}

func newStatusStore(cfg *config.Config, client *redis.Client) tracking.StatusStore {
	if client == nil {
		return tracking.NewMemoryStatusStore()
	}
	return tracking.NewRedisStatusStore(client, statusKeyPrefix, cfg.Redis.StatusTTL)
}

func newPushSender(ctx context.Context, cfg *config.Config, fb firebaseLoader, logger logx.Logger) (push.Sender, error) {
	switch cfg.Push.Provider {
	case config.PushProviderOneSignal:
		return push.NewOneSignal(cfg.Push.Endpoint, cfg.Push.AppID, cfg.Push.APIKey, cfg.Push.Timeout), nil
	case config.PushProviderFCM:
		app, err := fb()
		if err != nil {
			return nil, err
		}
		client, err := app.Messaging(ctx)
		if err != nil {
			return nil, fmt.Errorf("fcm client: %w", err)
		}
		return push.NewFCM(client), nil
	case config.PushProviderNone:
		logger.Warn("push provider disabled, notifications are stored only")
		return push.Nop(), nil
	default:
		return nil, fmt.Errorf("unknown push provider %q", cfg.Push.Provider)
	}
}
