package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces the keys written by RedisStore.
const DefaultPrefix = "workbench:session:"

// noExpiry is the index score of sessions stored without a TTL (2100-01-01).
const noExpiry = 4102444800

// RedisStore keeps snapshots in Redis as JSON. A sorted set indexes the
// live session ids by expiry time so List does not need KEYS or SCAN.
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the idle expiration of sessions. Every Get and Set extends it.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore connects to the Redis server at addr.
func NewRedisStore(addr, password string, db int, opts ...RedisOption) *RedisStore {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(client, opts...)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "index"
}

func (s *RedisStore) score(now time.Time) float64 {
	if s.ttl == 0 {
		return noExpiry
	}
	return float64(now.Add(s.ttl).Unix())
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get loads the snapshot of id and refreshes its expiry.
func (s *RedisStore) Get(ctx context.Context, id string) (Snapshot, bool, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("get session from redis: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode session: %w", err)
	}

	if s.ttl > 0 {
		pipe := s.client.Pipeline()
		pipe.Expire(ctx, s.key(id), s.ttl)
		pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: s.score(time.Now()), Member: id})
		if _, err := pipe.Exec(ctx); err != nil {
			return Snapshot{}, false, fmt.Errorf("touch session: %w", err)
		}
	}
	return snap, true, nil
}

// Set stores snap under id.
func (s *RedisStore) Set(ctx context.Context, id string, snap Snapshot) error {
	snap, err := validate(snap)
	if err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(id), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: s.score(time.Now()), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session to redis: %w", err)
	}
	return nil
}

// Clear deletes the snapshot of id.
func (s *RedisStore) Clear(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// List prunes expired ids from the index and returns the rest.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	if _, err := s.Sweep(ctx); err != nil {
		return nil, err
	}
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return ids, nil
}

// Sweep removes index entries whose keys have expired. Redis drops the
// values themselves.
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	now := fmt.Sprintf("%d", time.Now().Unix())
	n, err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", now).Result()
	if err != nil {
		return 0, fmt.Errorf("prune expired sessions: %w", err)
	}
	return int(n), nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
