// Package redisstore shares the session through Redis, so several CLI processes or a
// dashboard backend on other hosts see the same login.
package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/jrsteele09/cloudhub-session/credentials"
	"github.com/redis/go-redis/v9"
)

var _ credentials.Backend = (*Store)(nil)

const DefaultPrefix = "cloudhub:session:"

type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Option defines a function type to modify the Store instance.
type Option func(*Store)

// WithPrefix sets the key prefix for session keys.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithTTL expires stored keys after ttl. Zero keeps them until cleared.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

func New(client *redis.Client, options ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("[redisstore.New] client is required")
	}
	s := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Connect dials addr and verifies the server answers before returning the store.
func Connect(ctx context.Context, addr, password string, options ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return New(client, options...)
}

func (s *Store) Name() string {
	return "redis"
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.prefix+key, value, s.ttl).Err()
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.prefix + k
	}
	return s.client.Del(ctx, prefixed...).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
