package security

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimitConfig limits how often one caller may hit the generation endpoints
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
}

// ClientLimiter is a per-caller token bucket. Provider quotas are tracked
// separately by the credential pools.
type ClientLimiter struct {
	config *RateLimitConfig
	logger *logrus.Logger

	buckets map[string]*bucket
	mutex   sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	tokens   float64
	refilled time.Time
	seen     time.Time
}

// NewClientLimiter creates a limiter and starts its idle-bucket cleanup
func NewClientLimiter(config *RateLimitConfig, logger *logrus.Logger) *ClientLimiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 60
	}
	if config.BurstSize <= 0 {
		config.BurstSize = config.RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	l := &ClientLimiter{
		config:  config,
		logger:  logger,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow takes one token for key. When denied it returns how long to wait.
func (l *ClientLimiter) Allow(key string) (bool, time.Duration) {
	return l.allowAt(key, time.Now())
}

func (l *ClientLimiter) allowAt(key string, now time.Time) (bool, time.Duration) {
	if !l.config.Enabled {
		return true, 0
	}
	rate := float64(l.config.RequestsPerMinute) / float64(time.Minute)

	l.mutex.Lock()
	defer l.mutex.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.config.BurstSize), refilled: now}
		l.buckets[key] = b
	}
	b.seen = now
	if elapsed := now.Sub(b.refilled); elapsed > 0 {
		b.tokens = min(float64(l.config.BurstSize), b.tokens+float64(elapsed)*rate)
		b.refilled = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) / rate)
	return false, wait
}

// Middleware answers 429 with Retry-After when a caller is over its budget.
// Callers are keyed by authenticated subject, else by client IP.
func (l *ClientLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)
			if info, ok := GetAuthInfo(r.Context()); ok {
				key = info.Subject
			}
			allowed, wait := l.Allow(key)
			if !allowed {
				l.logger.WithFields(logrus.Fields{
					"client":      key,
					"retry_after": wait,
				}).Warn("Client rate limit exceeded")
				w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
				writeError(w, http.StatusTooManyRequests, "rate_limit_error", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *ClientLimiter) cleanup() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			l.mutex.Lock()
			for key, b := range l.buckets {
				if now.Sub(b.seen) > l.config.CleanupInterval {
					delete(l.buckets, key)
				}
			}
			l.mutex.Unlock()
		case <-l.stop:
			return
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (l *ClientLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}
