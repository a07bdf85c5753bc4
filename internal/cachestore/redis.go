package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// keyPrefix namespaces gateway entries inside a shared Redis database.
	keyPrefix = "cache"

	// scanBatchSize bounds a single SCAN page during enumeration and purge.
	scanBatchSize = 100

	// connectionTimeout is the timeout for verifying the Redis connection.
	connectionTimeout = 5 * time.Second
)

// ErrEmptyAddress is returned when the Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// NewRedisClient creates a Redis client and verifies the connection.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// RedisProvider is a Provider backed by Redis. Entries live under
// "cache:{generation}:{key}" with no expiry; invalidation is whole-generation
// deletion only.
type RedisProvider struct {
	client *redis.Client
}

// NewRedisProvider creates a Redis-backed store provider.
func NewRedisProvider(client *redis.Client) *RedisProvider {
	return &RedisProvider{client: client}
}

// Open returns a handle onto the named store. Redis keyspaces are created
// implicitly on first write, so Open never touches the server.
func (p *RedisProvider) Open(_ context.Context, name string) (Store, error) {
	if strings.Contains(name, ":") {
		return nil, fmt.Errorf("store name %q must not contain colons", name)
	}
	return &redisStore{name: name, client: p.client}, nil
}

// Names enumerates the generations that hold at least one entry.
func (p *RedisProvider) Names(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var names []string

	var cursor uint64
	for {
		keys, next, err := p.client.Scan(ctx, cursor, keyPrefix+":*", scanBatchSize).Result()
		if err != nil {
			return nil, fmt.Errorf("scan store names: %w", err)
		}

		for _, key := range keys {
			parts := strings.SplitN(key, ":", 3)
			if len(parts) < 3 {
				continue
			}
			if !seen[parts[1]] {
				seen[parts[1]] = true
				names = append(names, parts[1])
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return names, nil
}

// Delete removes every entry of the named store. Uses SCAN rather than a
// database flush so unrelated keys in a shared database survive.
func (p *RedisProvider) Delete(ctx context.Context, name string) error {
	pattern := keyPrefix + ":" + name + ":*"

	var cursor uint64
	for {
		keys, next, err := p.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("scan keys: %w", err)
		}

		if len(keys) > 0 {
			if delErr := p.client.Del(ctx, keys...).Err(); delErr != nil {
				return fmt.Errorf("delete keys: %w", delErr)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return nil
}

// redisStore is a handle onto one generation's keyspace.
type redisStore struct {
	name   string
	client *redis.Client
}

// Name returns the generation name this store was opened under.
func (s *redisStore) Name() string {
	return s.name
}

func (s *redisStore) key(entryKey string) string {
	return keyPrefix + ":" + s.name + ":" + entryKey
}

// Match returns the stored response for the key, or ErrNotFound.
func (s *redisStore) Match(ctx context.Context, key string) (*Response, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &resp, nil
}

// Put stores the response under the key with no expiry.
func (s *redisStore) Put(ctx context.Context, key string, resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	if err := s.client.Set(ctx, s.key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}
