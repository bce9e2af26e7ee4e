package oauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aurorasketchpad/aurora/internal/common"
)

// ErrStateNotFound is returned for a state that was never issued, has
// expired, or was already used.
var ErrStateNotFound = errors.New("oauth state not found")

// StateStore remembers the CSRF state handed to a provider until the
// callback consumes it.
type StateStore interface {
	Put(ctx context.Context, state, provider string, ttl time.Duration) error
	// Take returns the provider the state was issued for and forgets it.
	Take(ctx context.Context, state string) (string, error)
}

// NewState returns a fresh random state value.
func NewState() (string, error) {
	return common.MakeRandHexString(16)
}

type memoryEntry struct {
	provider  string
	expiresAt time.Time
}

// MemoryStateStore keeps states in process memory. Suitable for a single
// server instance.
type MemoryStateStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{entries: map[string]memoryEntry{}, now: time.Now}
}

func (s *MemoryStateStore) Put(_ context.Context, state, provider string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.entries[state] = memoryEntry{provider: provider, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryStateStore) Take(_ context.Context, state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[state]
	if !ok {
		return "", ErrStateNotFound
	}
	delete(s.entries, state)
	if !s.now().Before(e.expiresAt) {
		return "", ErrStateNotFound
	}
	return e.provider, nil
}

const stateKeyFormat = "aurora:oauth:state:%s"

type redisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

// RedisStateStore shares states between server instances.
type RedisStateStore struct {
	rdb redisClient
}

func NewRedisStateStore(rdb *redis.Client) *RedisStateStore {
	return &RedisStateStore{rdb: rdb}
}

func (s *RedisStateStore) Put(ctx context.Context, state, provider string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, fmt.Sprintf(stateKeyFormat, state), provider, ttl).Err(); err != nil {
		return fmt.Errorf("store oauth state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Take(ctx context.Context, state string) (string, error) {
	provider, err := s.rdb.GetDel(ctx, fmt.Sprintf(stateKeyFormat, state)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrStateNotFound
		}
		return "", fmt.Errorf("load oauth state: %w", err)
	}
	return provider, nil
}
