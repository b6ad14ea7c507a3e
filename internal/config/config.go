// Package config loads service settings from .env, the environment and flags.
package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Store drivers.
const (
	StoreDriverPostgres  = "postgres"
	StoreDriverFirestore = "firestore"
	StoreDriverMemory    = "memory"
)

// Push providers.
const (
	PushProviderOneSignal = "onesignal"
	PushProviderFCM       = "fcm"
	PushProviderNone      = "none"
)

// Config stores service settings.
type Config struct {
	Port        int
	LogLevel    string
	StoreDriver string
	JWTSecret   string

	DB        DB
	Firebase  Firebase
	Redis     Redis
	Push      Push
	Kafka     Kafka
	RateLimit RateLimit
	Workflow  Workflow
	Pprof     Pprof
}

// DB stores Postgres connection settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN builds a postgres connection URL.
func (d DB) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Pass),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Firebase stores Firebase project settings.
type Firebase struct {
	ProjectID         string
	CredentialsFile   string
	CredentialsBase64 string
}

// Redis stores Redis settings. An empty Addr disables Redis.
type Redis struct {
	Addr      string
	Password  string
	DB        int
	LockTTL   time.Duration
	StatusTTL time.Duration
}

// Enabled reports whether a Redis address is configured.
func (r Redis) Enabled() bool { return r.Addr != "" }

// Push stores push provider settings.
type Push struct {
	Provider string
	Endpoint string
	AppID    string
	APIKey   string
	Timeout  time.Duration
}

// Kafka stores tracking consumer settings.
type Kafka struct {
	Brokers []string
	GroupID string
	Topic   string
}

// RateLimit stores per-IP rate limit settings.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// Workflow stores business operation settings.
type Workflow struct {
	OperationTimeout time.Duration
}

// Pprof stores profiling endpoint settings.
type Pprof struct {
	Enabled bool
	Addr    string
	User    string
	Pass    string
}

type envReader struct {
	errs []error
}

func (e *envReader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *envReader) float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (e *envReader) bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (e *envReader) list(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads configuration in order: .env (if present), environment, flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}

	env := &envReader{}
	cfg := &Config{
		Port:        env.int("PORT", defaultPort),
		LogLevel:    env.str("LOG_LEVEL", defaultLogLevel),
		StoreDriver: env.str("STORE_DRIVER", defaultStoreDriver),
		JWTSecret:   env.str("JWT_SECRET", ""),
		DB: DB{
			Host: env.str("POSTGRES_HOST", defaultDB.Host),
			Port: env.str("POSTGRES_PORT", defaultDB.Port),
			User: env.str("POSTGRES_USER", defaultDB.User),
			Pass: env.str("POSTGRES_PASSWORD", defaultDB.Pass),
			Name: env.str("POSTGRES_DB", defaultDB.Name),
		},
		Firebase: Firebase{
			ProjectID:         env.str("FIREBASE_PROJECT_ID", ""),
			CredentialsFile:   env.str("FIREBASE_CREDENTIALS_FILE", ""),
			CredentialsBase64: env.str("FIREBASE_CREDENTIALS_BASE64", ""),
		},
		Redis: Redis{
			Addr:      env.str("REDIS_ADDR", ""),
			Password:  env.str("REDIS_PASSWORD", ""),
			DB:        env.int("REDIS_DB", 0),
			LockTTL:   env.duration("ASSIGN_LOCK_TTL", defaultRedis.LockTTL),
			StatusTTL: env.duration("TRACKING_STATUS_TTL", defaultRedis.StatusTTL),
		},
		Push: Push{
			Provider: strings.ToLower(env.str("PUSH_PROVIDER", defaultPush.Provider)),
			Endpoint: env.str("PUSH_ENDPOINT", defaultPush.Endpoint),
			AppID:    env.str("PUSH_APP_ID", ""),
			APIKey:   env.str("PUSH_API_KEY", ""),
			Timeout:  env.duration("PUSH_TIMEOUT", defaultPush.Timeout),
		},
		Kafka: Kafka{
			Brokers: env.list("KAFKA_BROKERS", DefaultKafka().Brokers),
			GroupID: env.str("KAFKA_GROUP_ID", defaultKafka.GroupID),
			Topic:   env.str("KAFKA_TRACKING_TOPIC", defaultKafka.Topic),
		},
		RateLimit: RateLimit{
			Enabled:    env.bool("RATE_LIMIT_ENABLED", defaultRateLimit.Enabled),
			Rate:       env.float("RATE_LIMIT_RPS", defaultRateLimit.Rate),
			Burst:      env.int("RATE_LIMIT_BURST", defaultRateLimit.Burst),
			TTL:        env.duration("RATE_LIMIT_TTL", defaultRateLimit.TTL),
			MaxBuckets: env.int("RATE_LIMIT_MAX_BUCKETS", defaultRateLimit.MaxBuckets),
		},
		Workflow: Workflow{
			OperationTimeout: env.duration("WORKFLOW_OPERATION_TIMEOUT", defaultWorkflow.OperationTimeout),
		},
		Pprof: Pprof{
			Enabled: env.bool("PPROF_ENABLED", false),
			Addr:    env.str("PPROF_ADDR", defaultPprof.Addr),
			User:    env.str("PPROF_USER", ""),
			Pass:    env.str("PPROF_PASSWORD", ""),
		},
	}
	if err := errors.Join(env.errs...); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	pflag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	pflag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	pflag.StringVar(&cfg.StoreDriver, "store", cfg.StoreDriver, "document store: postgres, firestore, memory")
	pflag.StringVar(&cfg.Push.Provider, "push", cfg.Push.Provider, "push provider: onesignal, fcm, none")
	if err := pflag.CommandLine.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Port))
	}
	if p, err := strconv.Atoi(c.DB.Port); err != nil || p <= 0 || p > 65535 {
		errs = append(errs, fmt.Errorf("invalid postgres port: %q", c.DB.Port))
	}
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	case StoreDriverFirestore:
		if c.Firebase.ProjectID == "" {
			errs = append(errs, errors.New("FIREBASE_PROJECT_ID is required for the firestore store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver: %q", c.StoreDriver))
	}
	switch c.Push.Provider {
	case PushProviderNone:
	case PushProviderOneSignal:
		if c.Push.AppID == "" || c.Push.APIKey == "" {
			errs = append(errs, errors.New("PUSH_APP_ID and PUSH_API_KEY are required for onesignal"))
		}
	case PushProviderFCM:
		if c.Firebase.ProjectID == "" {
			errs = append(errs, errors.New("FIREBASE_PROJECT_ID is required for fcm"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown push provider: %q", c.Push.Provider))
	}
	if c.Push.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid push timeout: %s", c.Push.Timeout))
	}
	if c.Workflow.OperationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid operation timeout: %s", c.Workflow.OperationTimeout))
	}
	if c.Redis.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("invalid assign lock ttl: %s", c.Redis.LockTTL))
	}
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("at least one kafka broker is required"))
	}
	return errors.Join(errs...)
}
