// Package ratelimit provides the per-host politeness gate shared by every outbound request.
package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultHostDelay is the minimum delay between request starts on one host.
const DefaultHostDelay = 1 * time.Second

// hostEntry serialises requests to one host and spaces their starts.
type hostEntry struct {
	inflight *semaphore.Weighted
	limiter  *rate.Limiter
}

// HostGate allows at most one in-flight request per host, with at least Delay
// between the starts of consecutive requests to that host.
type HostGate struct {
	delay time.Duration
	mu    sync.Mutex
	hosts map[string]*hostEntry
}

// NewHostGate creates a gate. A non-positive delay only serialises requests.
func NewHostGate(delay time.Duration) *HostGate {
	return &HostGate{
		delay: delay,
		hosts: make(map[string]*hostEntry),
	}
}

// Acquire blocks until a request to host may start. The returned release func must be
// called when the request (including reading its body) has finished.
func (g *HostGate) Acquire(ctx context.Context, host string) (func(), error) {
	entry := g.entry(HostKey(host))

	if err := entry.inflight.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if err := entry.limiter.Wait(ctx); err != nil {
		entry.inflight.Release(1)
		return nil, err
	}

	var once sync.Once
	return func() { once.Do(func() { entry.inflight.Release(1) }) }, nil
}

// Hosts returns the number of hosts seen so far.
func (g *HostGate) Hosts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.hosts)
}

func (g *HostGate) entry(host string) *hostEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	if e, ok := g.hosts[host]; ok {
		return e
	}
	limit := rate.Inf
	if g.delay > 0 {
		limit = rate.Every(g.delay)
	}
	e := &hostEntry{
		inflight: semaphore.NewWeighted(1),
		limiter:  rate.NewLimiter(limit, 1),
	}
	g.hosts[host] = e
	return e
}

// HostKey normalises a host or URL into the gate key (lower-case host, no port).
func HostKey(hostOrURL string) string {
	h := hostOrURL
	if strings.Contains(h, "://") {
		if u, err := url.Parse(h); err == nil {
			h = u.Host
		}
	}
	if i := strings.LastIndex(h, ":"); i >= 0 && !strings.Contains(h[i:], "]") {
		h = h[:i]
	}
	return strings.ToLower(h)
}
