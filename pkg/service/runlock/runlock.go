package runlock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
	"github.com/secmon-lab/casesync/pkg/utils/logging"
)

const (
	// DefaultTTL is how long a lock survives a crashed holder
	DefaultTTL = 2 * time.Minute
	// DefaultPrefix namespaces lock keys in a shared Redis
	DefaultPrefix = "casesync:lock:"
)

// Locker is a Redis backed interfaces.RunLock. A held lock is refreshed
// every half TTL until released.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
	prefix string
}

var _ interfaces.RunLock = &Locker{}

type Option func(*Locker)

// WithTTL sets the lock lifetime
func WithTTL(ttl time.Duration) Option {
	return func(l *Locker) {
		l.ttl = ttl
	}
}

// WithPrefix sets the key prefix
func WithPrefix(prefix string) Option {
	return func(l *Locker) {
		l.prefix = prefix
	}
}

// New creates a Locker on an existing Redis client
func New(rdb redis.UniversalClient, opts ...Option) *Locker {
	l := &Locker{
		client: redislock.New(rdb),
		ttl:    DefaultTTL,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Locker) TryAcquire(ctx context.Context, name string) (func(), bool, error) {
	key := l.prefix + name
	lock, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to obtain run lock", goerr.V("key", key))
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	go l.keepAlive(context.WithoutCancel(ctx), lock, stopCh, doneCh)

	release := func() {
		close(stopCh)
		<-doneCh
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logging.From(ctx).Warn("Failed to release run lock", "key", key, "error", err.Error())
		}
	}
	return release, true, nil
}

func (l *Locker) keepAlive(ctx context.Context, lock *redislock.Lock, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := lock.Refresh(ctx, l.ttl, nil); err != nil {
				logging.From(ctx).Warn("Failed to refresh run lock, another instance may start a run",
					"key", lock.Key(),
					"error", err.Error())
				return
			}
		case <-stopCh:
			return
		}
	}
}
