package config

import "time"

const (
	defaultPort        = 8080
	defaultLogLevel    = "info"
	defaultStoreDriver = StoreDriverPostgres
)

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "farmnook",
	Pass: "farmnook",
	Name: "farmnook",
}

var defaultRedis = Redis{
	LockTTL:   30 * time.Second,
	StatusTTL: 6 * time.Hour,
}

var defaultPush = Push{
	Provider: PushProviderNone,
	Endpoint: "https://api.onesignal.com",
	Timeout:  5 * time.Second,
}

var defaultKafka = Kafka{
	Brokers: []string{"localhost:9092"},
	GroupID: "farmnook-tracking",
	Topic:   "hauler.positions",
}

var defaultRateLimit = RateLimit{
	Enabled:    true,
	Rate:       10,
	Burst:      20,
	TTL:        5 * time.Minute,
	MaxBuckets: 10000,
}

var defaultWorkflow = Workflow{
	OperationTimeout: 3 * time.Second,
}

var defaultPprof = Pprof{
	Addr: "127.0.0.1:6060",
}

// DefaultPort returns the default HTTP port.
func DefaultPort() int { return defaultPort }

// DefaultDB returns the default database settings.
func DefaultDB() DB { return defaultDB }

// DefaultPush returns the default push settings.
func DefaultPush() Push { return defaultPush }

// DefaultKafka returns the default Kafka settings.
func DefaultKafka() Kafka {
	k := defaultKafka
	k.Brokers = append([]string(nil), defaultKafka.Brokers...)
	return k
}

// DefaultRateLimit returns the default rate limit settings.
func DefaultRateLimit() RateLimit { return defaultRateLimit }
