/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Tiered Cache
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package cache keeps collaborator responses in memory and, when configured,
// in Redis so repeated analyses of the same text do not pay for the same
// model call twice.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
)

const (
	keyPrefix       = "opf:"
	defaultTTL      = time.Hour
	cleanupInterval = 5 * time.Minute
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

// Tiered is an L1 in-process cache backed by an optional L2 Redis.
type Tiered struct {
	l1         sync.Map // key -> *entry
	rdb        *redis.Client
	ttl        time.Duration
	maxEntries int

	hits   atomic.Int64
	misses atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a cache. An empty or unreachable redisURL leaves L2 disabled.
func New(ctx context.Context, redisURL string, ttl time.Duration, maxEntries int) *Tiered {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	c := &Tiered{ttl: ttl, maxEntries: maxEntries, stop: make(chan struct{})}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logging.Warn("cache: invalid redis URL, L2 disabled", "error", err.Error())
		} else {
			rdb := redis.NewClient(opts)
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := rdb.Ping(pingCtx).Err(); err != nil {
				logging.Warn("cache: redis unreachable, L2 disabled", "addr", opts.Addr, "error", err.Error())
				rdb.Close()
			} else {
				c.rdb = rdb
				logging.Info("cache: L2 redis connected", "addr", opts.Addr)
			}
		}
	}

	logging.Info("cache initialized", "ttl", ttl.String(), "redis", c.rdb != nil, "max_entries", maxEntries)
	go c.cleanupLoop()
	return c
}

// Key builds a deterministic key from parts.
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// Get tries L1, then L2. An L2 hit repopulates L1.
func (c *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	if val, ok := c.l1.Load(key); ok {
		e := val.(*entry)
		if time.Now().Before(e.expiresAt) {
			c.hits.Add(1)
			return e.data, true
		}
		c.l1.Delete(key)
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			c.hits.Add(1)
			c.l1.Store(key, &entry{data: data, expiresAt: time.Now().Add(c.ttl)})
			return data, true
		}
		if err != redis.Nil {
			logging.Debug("cache: L2 get failed", "error", err.Error())
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Set stores data in both tiers.
func (c *Tiered) Set(ctx context.Context, key string, data []byte) {
	c.evictIfNeeded()
	c.l1.Store(key, &entry{data: data, expiresAt: time.Now().Add(c.ttl)})

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			logging.Debug("cache: L2 set failed", "error", err.Error())
		}
	}
}

// Stats returns hit and miss counters.
func (c *Tiered) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// RedisEnabled reports whether L2 is in use.
func (c *Tiered) RedisEnabled() bool {
	return c.rdb != nil
}

// Close stops the cleanup loop and closes the Redis client.
func (c *Tiered) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// evictIfNeeded drops expired entries, then the entries closest to expiry,
// until L1 is under maxEntries.
func (c *Tiered) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}
	count := c.len()
	if count < c.maxEntries {
		return
	}

	now := time.Now()
	c.l1.Range(func(key, val any) bool {
		if e := val.(*entry); now.After(e.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return true
	})

	for count >= c.maxEntries {
		var oldestKey any
		var oldestAt time.Time
		c.l1.Range(func(key, val any) bool {
			e := val.(*entry)
			if oldestKey == nil || e.expiresAt.Before(oldestAt) {
				oldestKey, oldestAt = key, e.expiresAt
			}
			return true
		})
		if oldestKey == nil {
			return
		}
		c.l1.Delete(oldestKey)
		count--
	}
}

func (c *Tiered) len() int {
	n := 0
	c.l1.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (c *Tiered) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.l1.Range(func(key, val any) bool {
				if now.After(val.(*entry).expiresAt) {
					c.l1.Delete(key)
				}
				return true
			})
		}
	}
}
