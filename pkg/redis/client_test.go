package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ordering-backend/pkg/config"
)

func newMockClient(t *testing.T) (*Client, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	return &Client{store: db, raw: db}, mock
}

func TestIncrWithTTLRunsInTransaction(t *testing.T) {
	ctx := context.Background()
	client, mock := newMockClient(t)
	key := client.RateLimitKey("checkout:session-a")

	mock.ExpectTxPipeline()
	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectExpireNX(key, time.Minute).SetVal(true)
	mock.ExpectTxPipelineExec()

	mock.ExpectTxPipeline()
	mock.ExpectIncr(key).SetVal(2)
	mock.ExpectExpireNX(key, time.Minute).SetVal(false)
	mock.ExpectTxPipelineExec()

	count, err := client.IncrWithTTL(ctx, key, time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	count, err = client.IncrWithTTL(ctx, key, time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetNXAndDel(t *testing.T) {
	ctx := context.Background()
	client, mock := newMockClient(t)
	key := client.IdempotencyKey("payment-outcome", "pay-1")

	mock.ExpectSetNX(key, "1", time.Hour).SetVal(true)
	mock.ExpectSetNX(key, "1", time.Hour).SetVal(false)
	mock.ExpectDel(key).SetVal(1)

	set, err := client.SetNX(ctx, key, "1", time.Hour)
	require.NoError(t, err)
	require.True(t, set)

	set, err = client.SetNX(ctx, key, "1", time.Hour)
	require.NoError(t, err)
	require.False(t, set)

	require.NoError(t, client.Del(ctx, key))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMissingReturnsRedisNil(t *testing.T) {
	ctx := context.Background()
	client, mock := newMockClient(t)
	key := client.CartKey("abc")
	mock.ExpectGet(key).RedisNil()

	_, err := client.Get(ctx, key)
	require.True(t, errors.Is(err, redis.Nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	_, err := client.Get(context.Background(), "k")
	require.ErrorIs(t, err, errNotInitialized)
	_, err = client.IncrWithTTL(context.Background(), "k", time.Second)
	require.Error(t, err)
	require.Error(t, client.Ping(context.Background()))
	require.NoError(t, client.Close())
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	require.Equal(t, "ord:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	require.Equal(t, "ord:rate_limit:scope", client.RateLimitKey("scope"))
	require.Equal(t, "ord:cart:deadbeef", client.CartKey("deadbeef"))
	require.Equal(t, "ord:lock:cron", client.LockKey("cron"))
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://localhost:6379/2",
		PoolSize:    7,
		DialTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", opts.Addr)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, 7, opts.PoolSize)
	require.Equal(t, 3*time.Second, opts.DialTimeout)

	_, err = optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6380", DB: 4, ReadTimeout: time.Second})
	require.NoError(t, err)
	require.Equal(t, "cache:6380", opts.Addr)
	require.Equal(t, 4, opts.DB)
	require.Equal(t, time.Second, opts.ReadTimeout)
}
