package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrUnavailable = errors.New("redis not available")
	ErrMiss        = errors.New("cache miss")
)

// ==================== CACHE KEYS ====================

const (
	CharacterPrefix = "character:"      // character:1009610
	SearchPrefix    = "search:"         // search:spi
	CatalogIDsKey   = "catalog:ids"     // every catalog id
	StatsKey        = "stats:community" // public statistics
)

func CharacterKey(id int) string {
	return fmt.Sprintf("%s%d", CharacterPrefix, id)
}

func SearchKey(prefix string) string {
	return SearchPrefix + prefix
}

// Redis is a JSON cache. A zero Redis, or one built without an address,
// reports ErrUnavailable on every call so callers fall through to the source.
type Redis struct {
	client *redis.Client
}

// New connects to addr. An empty addr yields a disabled cache.
func New(addr, password string) (*Redis, error) {
	if addr == "" {
		return &Redis{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return &Redis{}, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Redis{client: client}, nil
}

func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

// Available reports whether a live client is configured.
func (r *Redis) Available(ctx context.Context) bool {
	if r == nil || r.client == nil {
		return false
	}
	return r.client.Ping(ctx).Err() == nil
}

// ==================== GENERIC CACHE OPERATIONS ====================

// Set stores value as JSON under key with ttl
func (r *Redis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r == nil || r.client == nil {
		return ErrUnavailable
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return r.client.Set(ctx, key, data, ttl).Err()
}

// Get decodes the JSON stored under key into dest
func (r *Redis) Get(ctx context.Context, key string, dest interface{}) error {
	if r == nil || r.client == nil {
		return ErrUnavailable
	}

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("failed to get value: %w", err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
