// Package redis provides a Redis-backed rdc store. Records live in one hash
// so several RDC replicas can share a Redis instance under distinct prefixes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Homlet/middleware-android-sub001/internal/rdc/store"
)

const (
	KeyAddr        = "addr"
	KeyPassword    = "password"
	KeyDB          = "db"
	KeyMaxRetries  = "max_retries"
	KeyDialTimeout = "dial_timeout"
	KeyKeyPrefix   = "key_prefix"
)

func init() {
	store.Register("redis", NewFactory, Defaults)
}

// Defaults returns the default configuration for the Redis store.
func Defaults() map[string]string {
	return map[string]string{
		KeyAddr:        "localhost:6379",
		KeyPassword:    "",
		KeyDB:          "0",
		KeyMaxRetries:  "3",
		KeyDialTimeout: "5s",
		KeyKeyPrefix:   "mw-rdc:",
	}
}

// NewFactory connects to Redis and verifies the connection with a ping.
func NewFactory(ctx context.Context, s store.Settings) (store.Store, error) {
	addr, err := s.Require(KeyAddr)
	if err != nil {
		return nil, err
	}
	db, err := s.NonNegativeInt(KeyDB, 0)
	if err != nil {
		return nil, err
	}
	maxRetries, err := s.Int(KeyMaxRetries, 3)
	if err != nil {
		return nil, err
	}
	dialTimeout, err := s.Duration(KeyDialTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	prefix := s.String(KeyKeyPrefix, "mw-rdc:")

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    s.Raw(KeyPassword),
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, s.Err(KeyAddr, "failed to connect", err)
	}

	slog.Info("redis rdc store initialized", "addr", addr, "db", db, "key_prefix", prefix)
	return NewWithClient(client, prefix), nil
}

// Store is a Redis implementation of store.Store.
type Store struct {
	client *redis.Client
	key    string
	closed atomic.Bool
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "mw-rdc:"
	}
	return &Store{client: client, key: prefix + "announcements"}
}

func (s *Store) Put(ctx context.Context, rec *store.Record) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis put: encode: %w", err)
	}
	if err := s.client.HSet(ctx, s.key, rec.Key(), data).Err(); err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (*store.Record, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	data, err := s.client.HGet(ctx, s.key, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decode(data)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	if err := s.client.HDel(ctx, s.key, key).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]*store.Record, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}
	out := make([]*store.Record, 0, len(all))
	for _, data := range all {
		rec, err := decode([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.client.Close()
}

func decode(data []byte) (*store.Record, error) {
	var rec store.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("redis: decode record: %w", err)
	}
	return &rec, nil
}
