package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Storage persists cart snapshots by session hash.
type Storage interface {
	Get(ctx context.Context, sessionHash string) ([]byte, bool, error)
	Set(ctx context.Context, sessionHash string, snapshot []byte) error
	Clear(ctx context.Context, sessionHash string) error
}

type redisKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(sessionHash string) string
}

// RedisStorage keeps carts under ord:cart:<hash> with a sliding TTL.
type RedisStorage struct {
	kv  redisKV
	ttl time.Duration
}

func NewRedisStorage(kv redisKV, ttl time.Duration) *RedisStorage {
	return &RedisStorage{kv: kv, ttl: ttl}
}

func (s *RedisStorage) Get(ctx context.Context, sessionHash string) ([]byte, bool, error) {
	raw, err := s.kv.Get(ctx, s.kv.CartKey(sessionHash))
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(raw), true, nil
}

func (s *RedisStorage) Set(ctx context.Context, sessionHash string, snapshot []byte) error {
	return s.kv.Set(ctx, s.kv.CartKey(sessionHash), snapshot, s.ttl)
}

func (s *RedisStorage) Clear(ctx context.Context, sessionHash string) error {
	return s.kv.Del(ctx, s.kv.CartKey(sessionHash))
}

// MemoryStorage is a process-local Storage for tests and local runs.
type MemoryStorage struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{carts: map[string][]byte{}}
}

func (m *MemoryStorage) Get(_ context.Context, sessionHash string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.carts["cart:"+sessionHash]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), raw...), true, nil
}

func (m *MemoryStorage) Set(_ context.Context, sessionHash string, snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts["cart:"+sessionHash] = append([]byte(nil), snapshot...)
	return nil
}

func (m *MemoryStorage) Clear(_ context.Context, sessionHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, "cart:"+sessionHash)
	return nil
}
