// Package ratelimit limits requests to the search API per client and endpoint.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Info describes the limit applied to one request.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type bucket struct {
	limiter    *rate.Limiter
	limit      int
	lastAccess time.Time
}

// Limiter keeps one token bucket per client, path and method.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	config  *Config
	now     func() time.Time
	stop    chan struct{}
	done    sync.WaitGroup
}

// NewLimiter creates a Limiter. A nil config uses DefaultConfig. When cleanup
// is enabled a goroutine drops idle buckets until Stop is called.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	l := &Limiter{
		buckets: make(map[string]*bucket),
		config:  config,
		now:     time.Now,
	}
	if config.Enabled && config.CleanupInterval > 0 {
		l.stop = make(chan struct{})
		l.done.Add(1)
		go l.cleanup(config.CleanupInterval, l.stop)
	}
	return l
}

// Allow reports whether a request from clientID may proceed.
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{}
	}

	ep := MatchEndpoint(path, method, l.config.EndpointConfigs)
	if ep == nil {
		ep = &EndpointConfig{Limit: l.config.DefaultLimit, Window: l.config.DefaultWindow}
	}
	if ep.Limit <= 0 || ep.Window <= 0 {
		return true, Info{Allowed: true}
	}

	b := l.bucket(clientID+":"+path+":"+method, ep)
	now := l.now()
	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, Info{Limit: ep.Limit}
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, Info{Limit: ep.Limit, RetryAfter: delay}
	}
	remaining := int(math.Floor(b.limiter.TokensAt(now)))
	if remaining < 0 {
		remaining = 0
	}
	return true, Info{Allowed: true, Limit: ep.Limit, Remaining: remaining}
}

func (l *Limiter) bucket(key string, ep *EndpointConfig) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		burst := ep.Burst
		if burst <= 0 {
			burst = ep.Limit
		}
		every := rate.Limit(float64(ep.Limit) / ep.Window.Seconds())
		b = &bucket{limiter: rate.NewLimiter(every, burst), limit: ep.Limit}
		l.buckets[key] = b
	}
	b.lastAccess = l.now()
	return b
}

func (l *Limiter) cleanup(interval time.Duration, stop <-chan struct{}) {
	defer l.done.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle(time.Hour)
		case <-stop:
			return
		}
	}
}

// evictIdle drops buckets not used within idle.
func (l *Limiter) evictIdle(idle time.Duration) {
	cutoff := l.now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.mu.Lock()
	stop := l.stop
	l.stop = nil
	l.mu.Unlock()
	if stop != nil {
		close(stop)
		l.done.Wait()
	}
}
