// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package replay

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/sirosfoundation/go-saml2/pkg/token"
)

// DefaultWindow is the retention window applied when a token carries no
// expiry of its own.
const DefaultWindow = time.Hour

// Cache is an in-memory replay window keyed by token content hash.
// It is safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	seen   map[string]time.Time // hash -> retention deadline
	window time.Duration

	stop chan struct{}
	once sync.Once
}

// NewCache creates a replay cache. window bounds how long a presented
// token without an expiry is remembered; zero selects DefaultWindow. A
// cleanup goroutine prunes expired entries until Close is called.
func NewCache(window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	c := &Cache{
		seen:   make(map[string]time.Time),
		window: window,
		stop:   make(chan struct{}),
	}
	go c.cleanupExpired()
	return c
}

// Validate is the token handler's ReplayValidator stage: it records the
// token on first presentation and fails ErrTokenReplayed afterwards.
// Entries are retained until the token's own expiry plus the configured
// clock skew, or for the cache window when the token has none.
func (c *Cache) Validate(tok []byte, expires *time.Time, params *token.ValidationParameters) error {
	key := hashToken(tok)
	now := time.Now()

	deadline := now.Add(c.window)
	if expires != nil {
		skew := time.Duration(0)
		if params != nil {
			skew = params.ClockSkew
		}
		deadline = expires.Add(skew)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if until, exists := c.seen[key]; exists && now.Before(until) {
		return fmt.Errorf("%w: replay window until %s", token.ErrTokenReplayed, until.UTC().Format(time.RFC3339))
	}
	c.seen[key] = deadline
	return nil
}

// Len returns the number of retained entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.seen)
}

// Close stops the cleanup goroutine. The cache remains usable but no
// longer prunes in the background.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache) cleanupExpired() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, until := range c.seen {
				if now.After(until) {
					delete(c.seen, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// hashToken derives the cache key from the token bytes.
func hashToken(tok []byte) string {
	sum := sha256.Sum256(tok)
	return hex.EncodeToString(sum[:])
}
