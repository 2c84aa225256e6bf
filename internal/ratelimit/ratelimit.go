// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

// Package ratelimit throttles requests per key with token buckets.
package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// Config configures a keyed limiter.
type Config struct {
	Rate            rate.Limit
	Burst           int
	CleanupInterval time.Duration
}

// PerMinute returns a config allowing n events per minute with a burst of n.
func PerMinute(n int) Config {
	return Config{
		Rate:            rate.Limit(float64(n) / 60.0),
		Burst:           n,
		CleanupInterval: 5 * time.Minute,
	}
}

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter keeps one token bucket per key. Idle keys are dropped in the background.
type Limiter struct {
	config  Config
	mu      sync.Mutex
	entries map[string]*entry
	stopCh  chan struct{}
	once    sync.Once
}

// New creates a Limiter and starts its cleanup loop.
func New(config Config) *Limiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	l := &Limiter{
		config:  config,
		entries: make(map[string]*entry),
		stopCh:  make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Stop ends the cleanup loop.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stopCh) })
}

// Allow reports whether an event for key may happen now.
func (l *Limiter) Allow(key string) bool {
	return l.limiter(key).Allow()
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// RetryAfter is the estimated wait for one token, in whole seconds.
func (l *Limiter) RetryAfter() int {
	if l.config.Rate <= 0 {
		return 60
	}
	return max(1, int(math.Ceil(1.0/float64(l.config.Rate))))
}

func (l *Limiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if e, ok := l.entries[key]; ok {
		e.lastAccess = now
		return e.limiter
	}
	e := &entry{
		limiter:    rate.NewLimiter(l.config.Rate, l.config.Burst),
		lastAccess: now,
	}
	l.entries[key] = e
	return e.limiter
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now())
		case <-l.stopCh:
			return
		}
	}
}

// cleanup drops keys idle for more than two cleanup intervals.
func (l *Limiter) cleanup(now time.Time) {
	ttl := l.config.CleanupInterval * 2

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.entries {
		if now.Sub(e.lastAccess) > ttl {
			delete(l.entries, key)
		}
	}
}

// Middleware rejects requests over the limit of their client IP with a 429
// HTTP error and a Retry-After header. The client IP comes from the server's
// IPExtractor, which must not trust forwarding headers from arbitrary peers.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if l.Allow(ip) {
				return next(c)
			}

			slog.Warn("rate_limit_exceeded", "ip", ip, "path", c.Path())
			c.Response().Header().Set("Retry-After", strconv.Itoa(l.RetryAfter()))
			return echo.NewHTTPError(http.StatusTooManyRequests)
		}
	}
}
