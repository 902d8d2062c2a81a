package input

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// LimiterConfig configures per-source rate limiting
type LimiterConfig struct {
	PerSecond float64
	Burst     int
	IdleTTL   time.Duration // sources quiet for this long are forgotten
}

// DefaultLimiterConfig allows a 60 Hz pose stream with headroom
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		PerSecond: 60,
		Burst:     120,
		IdleTTL:   5 * time.Minute,
	}
}

type sourceEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nano
}

// Limiter rate-limits commands per source
type Limiter struct {
	limiters    sync.Map // map[string]*sourceEntry
	config      LimiterConfig
	nextCleanup atomic.Int64

	limited atomic.Uint64
}

// NewLimiter creates a limiter. A non-positive rate disables limiting.
func NewLimiter(cfg LimiterConfig) *Limiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 5 * time.Minute
	}
	l := &Limiter{config: cfg}
	l.nextCleanup.Store(time.Now().Add(cfg.IdleTTL).UnixNano())
	return l
}

// Allow reports whether source may submit another command now
func (l *Limiter) Allow(source string) bool {
	if l == nil || l.config.PerSecond <= 0 {
		return true
	}
	now := time.Now()
	l.maybeCleanup(now)

	if l.getLimiter(source, now).Allow() {
		return true
	}
	l.limited.Add(1)
	return false
}

func (l *Limiter) getLimiter(source string, now time.Time) *rate.Limiter {
	if v, ok := l.limiters.Load(source); ok {
		e := v.(*sourceEntry)
		e.lastSeen.Store(now.UnixNano())
		return e.limiter
	}
	e := &sourceEntry{limiter: rate.NewLimiter(rate.Limit(l.config.PerSecond), l.config.Burst)}
	e.lastSeen.Store(now.UnixNano())
	actual, _ := l.limiters.LoadOrStore(source, e)
	return actual.(*sourceEntry).limiter
}

func (l *Limiter) maybeCleanup(now time.Time) {
	next := l.nextCleanup.Load()
	if now.UnixNano() < next || !l.nextCleanup.CompareAndSwap(next, now.Add(l.config.IdleTTL).UnixNano()) {
		return
	}
	cutoff := now.Add(-l.config.IdleTTL).UnixNano()
	l.limiters.Range(func(key, value any) bool {
		if value.(*sourceEntry).lastSeen.Load() < cutoff {
			l.limiters.Delete(key)
		}
		return true
	})
}

// Limited returns how many commands were rejected
func (l *Limiter) Limited() uint64 {
	if l == nil {
		return 0
	}
	return l.limited.Load()
}
