// Package redisstore adapts a redigo connection pool to the
// cache.KVStore interface: plain GET/SET command execution over
// pool.Get/Conn.Do.
package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/ensembl-io/genoverse-backend/pkg/cache"
)

// Store is a cache.KVStore backed by a redigo connection pool.
type Store struct {
	pool *redis.Pool
}

// New wraps an existing redigo pool. The caller owns the pool's
// lifecycle (including closing it on shutdown).
func New(pool *redis.Pool) *Store {
	return &Store{pool: pool}
}

// Get implements cache.KVStore.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	value, err := redis.Bytes(conn.Do("GET", key))
	if errors.Is(err, redis.ErrNil) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, err
	}

	return value, nil
}

// Set implements cache.KVStore.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("SET", key, value)
	return err
}

// NewPool builds a redigo pool dialing addr, matching the dial/test-on-
// borrow shape redigo examples use in production.
func NewPool(addr string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     8,
		MaxActive:   64,
		IdleTimeout: 0,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			_, err := c.Do("PING")
			return err
		},
	}
}
