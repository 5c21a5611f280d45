package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
	"github.com/angelmondragon/ordering-backend/pkg/instance"
)

const (
	DefaultLeaseTTL  = 5 * time.Second
	DefaultLeaseWait = 2 * time.Second

	leasePoll = 25 * time.Millisecond
)

var errLeaseHeld = errors.New("cart lease held by another writer")

// SessionLease serializes cart writes for one session across API replicas.
type SessionLease interface {
	Acquire(ctx context.Context, sessionHash string) (release func(), err error)
}

type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(name string) string
}

// RedisLease is a SETNX lease under ord:lock:cart:<hash>. ttl bounds how long a
// crashed writer can block the session; wait bounds how long a caller queues.
type RedisLease struct {
	store leaseStore
	ttl   time.Duration
	wait  time.Duration
}

func NewRedisLease(store leaseStore, ttl, wait time.Duration) (*RedisLease, error) {
	if store == nil {
		return nil, errors.New("redis client required for cart lease")
	}
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	if wait <= 0 {
		wait = DefaultLeaseWait
	}
	return &RedisLease{store: store, ttl: ttl, wait: wait}, nil
}

func (l *RedisLease) Acquire(ctx context.Context, sessionHash string) (func(), error) {
	key := l.store.LockKey("cart:" + sessionHash)
	token := instance.GetID() + "/" + uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()
	err := retry.Do(waitCtx, retry.WithJitterPercent(20, retry.NewConstant(leasePoll)), func(ctx context.Context) error {
		ok, err := l.store.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			return err
		}
		if !ok {
			return retry.RetryableError(errLeaseHeld)
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, errLeaseHeld) || (errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil):
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart is being updated, try again")
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire cart lease")
	}

	return func() { l.release(context.WithoutCancel(ctx), key, token) }, nil
}

// release deletes the key only while it still holds our token. Errors are
// dropped: the lease lapses on its own after ttl.
func (l *RedisLease) release(ctx context.Context, key, token string) {
	current, err := l.store.Get(ctx, key)
	if err != nil || current != token {
		return
	}
	_ = l.store.Del(ctx, key)
}
