// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

// Package redisstore implements session.Store on Redis.
package redisstore

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/motiveme/motiveme/internal/session"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "motiveme:session:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	options := &redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
	if opts.TLS {
		options.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // connection never came up
		return nil, oops.Code("REDIS_CONNECT_FAILED").
			With("addr", opts.Addr).
			Wrap(err)
	}
	return client, nil
}

// Store is a session.Store backed by Redis. Expiry is delegated to Redis
// TTLs, so no janitor is needed.
type Store struct {
	client redis.Cmdable
	prefix string
}

// New creates a Store using client. An empty prefix selects DefaultKeyPrefix.
func New(client redis.Cmdable, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(key string) string {
	return s.prefix + key
}

// Save implements session.Store.
func (s *Store) Save(ctx context.Context, key string, rec session.Record, ttl time.Duration) error {
	if key == "" {
		return oops.Code("SESSION_INVALID_KEY").Errorf("session key cannot be empty")
	}
	if ttl <= 0 {
		return oops.Code("SESSION_INVALID_TTL").With("ttl", ttl).Errorf("session ttl must be positive")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}
	if err := s.client.Set(ctx, s.key(key), payload, ttl).Err(); err != nil {
		return oops.Code("SESSION_SAVE_FAILED").
			With("operation", "redis set").
			Wrap(err)
	}
	return nil
}

// Load implements session.Store.
func (s *Store) Load(ctx context.Context, key string) (*session.Record, error) {
	payload, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, session.ErrNotFound
		}
		return nil, oops.Code("SESSION_LOAD_FAILED").
			With("operation", "redis get").
			Wrap(err)
	}

	var rec session.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, oops.Code("SESSION_DECODE_FAILED").Wrap(err)
	}
	return &rec, nil
}

// Delete implements session.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "redis del").
			Wrap(err)
	}
	return nil
}

var _ session.Store = (*Store)(nil)
