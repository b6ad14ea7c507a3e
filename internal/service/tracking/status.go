package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"farmnook-dispatch/internal/apperr"
	"farmnook-dispatch/internal/domain"
)

// LiveStatus is the latest known position and estimate of a delivery.
type LiveStatus struct {
	DeliveryID  string         `json:"delivery_id"`
	HaulerID    string         `json:"hauler_id"`
	Position    *domain.LatLng `json:"position,omitempty"`
	Destination *domain.LatLng `json:"destination,omitempty"`
	SpeedKmh    float64        `json:"speed_kmh"`
	DistanceKm  *float64       `json:"distance_km,omitempty"`
	ETAMinutes  *int           `json:"eta_minutes,omitempty"`
	ETA         string         `json:"eta"`
	RecordedAt  time.Time      `json:"recorded_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// StatusStore keeps the latest LiveStatus per delivery.
type StatusStore interface {
	Save(ctx context.Context, s LiveStatus) error
	// Load returns an error wrapping apperr.ErrNotFound when nothing was saved.
	Load(ctx context.Context, deliveryID string) (LiveStatus, error)
}

// MemoryStatusStore is a process-local StatusStore.
type MemoryStatusStore struct {
	mu       sync.RWMutex
	statuses map[string]LiveStatus
}

// NewMemoryStatusStore creates an empty MemoryStatusStore.
func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{statuses: make(map[string]LiveStatus)}
}

// Save stores s, replacing any previous status of the delivery.
func (m *MemoryStatusStore) Save(_ context.Context, s LiveStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[s.DeliveryID] = s
	return nil
}

// Load returns the last saved status.
func (m *MemoryStatusStore) Load(_ context.Context, deliveryID string) (LiveStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statuses[deliveryID]
	if !ok {
		return LiveStatus{}, fmt.Errorf("live status %q: %w", deliveryID, apperr.ErrNotFound)
	}
	return s, nil
}

type redisKV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStatusStore shares live statuses between the worker and API processes.
type RedisStatusStore struct {
	client redisKV
	prefix string
	ttl    time.Duration
}

// NewRedisStatusStore creates a store whose entries expire after ttl.
func NewRedisStatusStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStatusStore {
	return newRedisStatusStore(client, prefix, ttl)
}

func newRedisStatusStore(client redisKV, prefix string, ttl time.Duration) *RedisStatusStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStatusStore{client: client, prefix: prefix, ttl: ttl}
}

// Save stores s as JSON under the delivery key.
func (r *RedisStatusStore) Save(ctx context.Context, s LiveStatus) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal live status: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+s.DeliveryID, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save live status %q: %w", s.DeliveryID, err)
	}
	return nil
}

// Load reads the status of deliveryID.
func (r *RedisStatusStore) Load(ctx context.Context, deliveryID string) (LiveStatus, error) {
	raw, err := r.client.Get(ctx, r.prefix+deliveryID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return LiveStatus{}, fmt.Errorf("live status %q: %w", deliveryID, apperr.ErrNotFound)
		}
		return LiveStatus{}, fmt.Errorf("load live status %q: %w", deliveryID, err)
	}
	var s LiveStatus
	if err := json.Unmarshal(raw, &s); err != nil {
		return LiveStatus{}, fmt.Errorf("unmarshal live status %q: %w", deliveryID, err)
	}
	return s, nil
}
