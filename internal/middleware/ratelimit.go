package middleware

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore counts hits per key inside a fixed window.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

type visitor struct {
	count     int64
	windowEnd time.Time
}

// MemoryStore keeps counters in process.
type MemoryStore struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

func NewMemoryStore(window time.Duration) *MemoryStore {
	s := &MemoryStore{
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}

	// Cleanup goroutine
	go func() {
		for {
			time.Sleep(window)
			s.mu.Lock()
			for key, v := range s.visitors {
				if s.now().After(v.windowEnd) {
					delete(s.visitors, key)
				}
			}
			s.mu.Unlock()
		}
	}()

	return s
}

func (s *MemoryStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	v, exists := s.visitors[key]
	if !exists || now.After(v.windowEnd) {
		s.visitors[key] = &visitor{count: 1, windowEnd: now.Add(window)}
		return 1, nil
	}

	v.count++
	return v.count, nil
}

// RedisStore shares counters between replicas.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := s.prefix + key
	n, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	if n == 1 {
		if err := s.client.Expire(ctx, k, window).Err(); err != nil {
			return n, fmt.Errorf("redis expire: %w", err)
		}
	}
	return n, nil
}

type RateLimiter struct {
	store  CounterStore
	limit  int64
	window time.Duration
}

func NewRateLimiter(store CounterStore, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{store: store, limit: int64(limit), window: window}
}

// Allow charges one hit to key. Store errors are logged and let the call
// through.
func (rl *RateLimiter) Allow(ctx context.Context, key string) bool {
	if rl == nil {
		return true
	}
	count, err := rl.store.Increment(ctx, key, rl.window)
	if err != nil {
		log.Printf("WARNING: rate limiter store failed: %v", err)
		return true
	}
	return count <= rl.limit
}

// Middleware limits requests per client IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(r.Context(), ClientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP is the host part of RemoteAddr. Forwarded headers only reach it
// when the router runs chi's RealIP, which is enabled for trusted proxies.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
