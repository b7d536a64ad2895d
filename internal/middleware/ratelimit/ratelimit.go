// Package ratelimit throttles each client to a fixed number of requests per
// one-minute window. Idle clients are dropped by CleanExpired, which the
// cache manager runs on its cleanup schedule.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const window = time.Minute

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	// IdleTTL is how long a silent client is remembered.
	IdleTTL time.Duration
}

// DefaultConfig allows 120 requests per minute; slider drags fire one request per step.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		IdleTTL:           10 * time.Minute,
	}
}

// Limiter counts requests per client IP.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*counter
	limit   int
	idle    time.Duration
	now     func() time.Time

	rejected atomic.Int64
}

type counter struct {
	start    time.Time
	last     time.Time
	requests int
}

func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = def.IdleTTL
	}
	return &Limiter{
		clients: make(map[string]*counter),
		limit:   config.RequestsPerMinute,
		idle:    config.IdleTTL,
		now:     time.Now,
	}
}

// Allow counts one request from client. When the window is exhausted it
// returns false and the whole seconds until the window restarts.
func (l *Limiter) Allow(client string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.clients[client]
	if !ok || now.Sub(c.start) >= window {
		l.clients[client] = &counter{start: now, last: now, requests: 1}
		return true, 0
	}

	c.requests++
	c.last = now
	if c.requests <= l.limit {
		return true, 0
	}
	l.rejected.Add(1)
	left := window - now.Sub(c.start)
	return false, max(int(left/time.Second)+1, 1)
}

// CleanExpired forgets clients idle for longer than IdleTTL.
func (l *Limiter) CleanExpired() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idle)
	removed := 0
	for ip, c := range l.clients {
		if c.last.Before(cutoff) {
			delete(l.clients, ip)
			removed++
		}
	}
	return removed
}

// Clients is the number of tracked clients.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Rejected is the number of requests refused since start.
func (l *Limiter) Rejected() int64 {
	return l.rejected.Load()
}

// Middleware refuses requests over the limit with Retry-After set. onLimit
// writes the body; nil means a plain 429.
func (l *Limiter) Middleware(clientIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry := l.Allow(clientIP(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			if onLimit == nil {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			onLimit(w, r)
		})
	}
}
