package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"coupon-service/config"
	"coupon-service/pkg/utils"

	"golang.org/x/time/rate"
)

type bucketPolicy struct {
	limit rate.Limit
	burst int
}

type bucketKey struct {
	client string
	write  bool
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles each client with two token buckets: one for reads and
// a stricter one for writes (coupon creation and deletion).
type RateLimiter struct {
	read      bucketPolicy
	write     bucketPolicy
	clientTTL time.Duration

	mu      sync.Mutex
	buckets map[bucketKey]*bucket

	stop context.CancelFunc
}

// NewRateLimiter starts a limiter configured from cfg. Idle buckets are
// swept every RateLimitCleanup until ctx ends or Shutdown is called.
func NewRateLimiter(ctx context.Context, cfg *config.Config) *RateLimiter {
	ctx, cancel := context.WithCancel(ctx)
	rl := &RateLimiter{
		read:      bucketPolicy{limit: rate.Limit(cfg.RateLimitRPS), burst: cfg.RateLimitBurst},
		write:     bucketPolicy{limit: rate.Limit(cfg.RateLimitWriteRPS), burst: cfg.RateLimitWriteBurst},
		clientTTL: cfg.RateLimitClientTTL,
		buckets:   make(map[bucketKey]*bucket),
		stop:      cancel,
	}
	go rl.sweepLoop(ctx, cfg.RateLimitCleanup)
	return rl
}

// Middleware rejects requests over the client's budget with 429 and a
// Retry-After hint derived from the bucket refill time.
func (rl *RateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := rl.limiterFor(getClientIP(r), isWriteMethod(r.Method)).Reserve()
			if !res.OK() {
				utils.WriteError(w, http.StatusTooManyRequests, "Too Many Requests")
				return
			}
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
				utils.WriteError(w, http.StatusTooManyRequests, "Too Many Requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) limiterFor(client string, write bool) *rate.Limiter {
	key := bucketKey{client: client, write: write}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		p := rl.read
		if write {
			p = rl.write
		}
		b = &bucket{limiter: rate.NewLimiter(p.limit, p.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

func (rl *RateLimiter) sweepLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

func (rl *RateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.clientTTL {
			delete(rl.buckets, key)
		}
	}
}

// Shutdown stops the sweeper.
func (rl *RateLimiter) Shutdown() {
	rl.stop()
}

func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
