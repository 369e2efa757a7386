package runlock_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/casesync/pkg/service/runlock"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR is not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	rdb := newRedis(t)
	prefix := "test:" + uuid.NewString()[:8] + ":"

	a := runlock.New(rdb, runlock.WithPrefix(prefix), runlock.WithTTL(2*time.Second))
	b := runlock.New(rdb, runlock.WithPrefix(prefix), runlock.WithTTL(2*time.Second))

	release, ok, err := a.TryAcquire(ctx, "sync:sheet")
	gt.NoError(t, err).Required()
	gt.Bool(t, ok).True()

	_, ok, err = b.TryAcquire(ctx, "sync:sheet")
	gt.NoError(t, err).Required()
	gt.Bool(t, ok).False()

	other, ok, err := b.TryAcquire(ctx, "sync:report_api")
	gt.NoError(t, err).Required()
	gt.Bool(t, ok).True()
	other()

	// held past the TTL through refresh
	time.Sleep(3 * time.Second)
	_, ok, err = b.TryAcquire(ctx, "sync:sheet")
	gt.NoError(t, err).Required()
	gt.Bool(t, ok).False()

	release()
	again, ok, err := b.TryAcquire(ctx, "sync:sheet")
	gt.NoError(t, err).Required()
	gt.Bool(t, ok).True()
	again()
}
