// Package redis provides the durable key-addressed storage used for cache
// snapshots. Redis is an optional dependency: every operation runs through
// a circuit breaker, and callers (the cache layer) absorb failures so a
// dead Redis degrades the system to a pure memory cache.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"fruver-market/internal/metrics"
)

// Config configures the snapshot store.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Store is a key-addressed string store backed by Redis. It implements
// the cache layer's Storage interface.
type Store struct {
	client  *goredis.Client
	breaker *CircuitBreaker
}

// NewStore creates the snapshot store and pings the server.
func NewStore(cfg Config, met *metrics.Metrics) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	breaker := NewCircuitBreaker(5, 10*time.Second)
	if met != nil {
		breaker.OnStateChange = func(from, to State) {
			log.Printf("[redis] snapshot breaker %s -> %s", from, to)
			met.SnapshotBreakerState.Set(float64(to))
			if to == StateOpen {
				met.SnapshotBreakerTrips.Inc()
			}
		}
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Store{client: client, breaker: breaker}, nil
}

// Client returns the underlying Redis client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// Get returns the value stored under key, with ok=false for absent keys.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	var found bool
	err := s.breaker.Execute(func() error {
		v, err := s.client.Get(ctx, key).Result()
		if err == goredis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		value, found = v, true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, found, nil
}

// Set stores value under key with no expiry; the cache layer's idle
// window governs snapshot lifetime, not Redis TTLs.
func (s *Store) Set(ctx context.Context, key, value string) error {
	err := s.breaker.Execute(func() error {
		return s.client.Set(ctx, key, value, 0).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	err := s.breaker.Execute(func() error {
		return s.client.Del(ctx, key).Err()
	})
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
