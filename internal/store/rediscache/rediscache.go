// Package rediscache is the local session cache backed by Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/stockcount/internal/session"
)

const (
	sessionPrefix = "stock_session:"
	lockPrefix    = "stock_session_lock:"
)

// ErrLocked is returned by Lock when another instance holds the lock.
var ErrLocked = errors.New("session is locked by another request")

// Cache stores session records as JSON strings with a sliding TTL.
type Cache struct {
	rdb    *redis.Client
	locker *redislock.Client
	ttl    time.Duration
}

// New wraps an existing client.
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{
		rdb:    rdb,
		locker: redislock.New(rdb),
		ttl:    ttl,
	}
}

// Connect creates a client for addr and verifies it with a ping.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func sessionKey(email string) string {
	return sessionPrefix + email
}

func (c *Cache) Get(ctx context.Context, key string) (*session.Record, error) {
	val, err := c.rdb.Get(ctx, sessionKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec session.Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("decode cached session: %w", err)
	}
	return &rec, nil
}

func (c *Cache) Put(ctx context.Context, rec *session.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := c.rdb.Set(ctx, sessionKey(rec.Key()), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, sessionKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Lock takes a short-lived lock on an operator's session so two instances
// cannot run setup for the same operator at once.
func (c *Cache) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lock, err := c.locker.Obtain(ctx, lockPrefix+key, ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("obtain session lock: %w", err)
	}

	return func() {
		// Release uses its own context: the request may already be done.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}, nil
}

// Ping checks connectivity for health endpoints.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
