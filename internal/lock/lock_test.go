package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"farmnook-dispatch/internal/apperr"
)

type fakeRedis struct {
	mu      sync.Mutex
	keys    map[string]string
	ttls    map[string]time.Duration
	setErr  error
	evalled []string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewBoolCmd(ctx)
	if f.setErr != nil {
		cmd.SetErr(f.setErr)
		return cmd
	}
	if _, ok := f.keys[key]; ok {
		cmd.SetVal(false)
		return cmd
	}
	f.keys[key] = value.(string)
	f.ttls[key] = ttl
	cmd.SetVal(true)
	return cmd
}

func (f *fakeRedis) Eval(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evalled = append(f.evalled, keys[0])
	cmd := redis.NewCmd(ctx)
	if f.keys[keys[0]] == args[0].(string) {
		delete(f.keys, keys[0])
		cmd.SetVal(int64(1))
		return cmd
	}
	cmd.SetVal(int64(0))
	return cmd
}

func TestRedis_AcquireRelease(t *testing.T) {
	t.Parallel()

	fr := newFakeRedis()
	l := newRedis(fr, "assign:", time.Minute)

	release, err := l.Acquire(context.Background(), "R1")
	require.NoError(t, err)
	require.Contains(t, fr.keys, "assign:R1")
	require.Equal(t, time.Minute, fr.ttls["assign:R1"])

	_, err = l.Acquire(context.Background(), "R1")
	require.ErrorIs(t, err, apperr.ErrConflict)

	release()
	require.NotContains(t, fr.keys, "assign:R1")

	release2, err := l.Acquire(context.Background(), "R1")
	require.NoError(t, err)
	release2()
}

func TestRedis_ReleaseKeepsForeignLease(t *testing.T) {
	t.Parallel()

	fr := newFakeRedis()
	l := newRedis(fr, "", time.Second)

	release, err := l.Acquire(context.Background(), "R1")
	require.NoError(t, err)

	// lease expired and was taken by someone else
	fr.keys["R1"] = "other-token"
	release()
	require.Equal(t, "other-token", fr.keys["R1"])
}

func TestRedis_BackendError(t *testing.T) {
	t.Parallel()

	fr := newFakeRedis()
	fr.setErr = errors.New("connection refused")

	_, err := newRedis(fr, "", 0).Acquire(context.Background(), "R1")
	require.Error(t, err)
	require.NotErrorIs(t, err, apperr.ErrConflict)
}

func TestNop(t *testing.T) {
	t.Parallel()

	release, err := Nop().Acquire(context.Background(), "any")
	require.NoError(t, err)
	release()
}
