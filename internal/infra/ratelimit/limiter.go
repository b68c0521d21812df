package ratelimit

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const DefaultCacheSize = 10_000

type visitor struct {
	limiter *rate.Limiter
	last    time.Time
}

// Limiter keeps one token bucket per client key. At most cacheSize keys are
// tracked (least recently used go first) and keys idle for longer than ttl
// are dropped by a sweeper that runs until ctx is done.
type Limiter struct {
	mu       sync.Mutex
	visitors *lru.Cache[string, *visitor]
	limit    rate.Limit
	burst    int
	ttl      time.Duration
}

func New(ctx context.Context, limit, burst, cacheSize int, ttl time.Duration) *Limiter {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	visitors, _ := lru.New[string, *visitor](cacheSize)

	l := &Limiter{
		visitors: visitors,
		limit:    rate.Limit(limit),
		burst:    burst,
		ttl:      ttl,
	}
	go l.sweep(ctx)
	return l
}

// Allow reports whether key may make one more call now.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	v, ok := l.visitors.Get(key)
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors.Add(key, v)
	}
	v.last = time.Now()
	l.mu.Unlock()

	return v.limiter.Allow()
}

// Len is the number of keys currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.visitors.Len()
}

func (l *Limiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(l.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evictIdle(now)
		}
	}
}

func (l *Limiter) evictIdle(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, key := range l.visitors.Keys() {
		if v, ok := l.visitors.Peek(key); ok && now.Sub(v.last) > l.ttl {
			l.visitors.Remove(key)
		}
	}
}
