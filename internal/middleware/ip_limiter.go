// Package middleware carries the HTTP-level protections in front of the
// canvas endpoints: per-IP connection budgets and client IP extraction
// behind proxies.
package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const staleAfter = 1 * time.Hour

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimit hands each client IP its own token bucket. Entries idle
// for an hour are dropped by the cleanup loop.
type IPRateLimit struct {
	mu      sync.Mutex
	entries map[string]*ipEntry
	every   time.Duration
	burst   int
}

// NewIPRateLimit allows one event per every with the given burst, per
// IP. The zero-ish default, one connection per 6 seconds with burst 5,
// matches a human opening a handful of tabs.
func NewIPRateLimit(every time.Duration, burst int) *IPRateLimit {
	if every <= 0 {
		every = 6 * time.Second
	}
	if burst <= 0 {
		burst = 5
	}
	return &IPRateLimit{
		entries: make(map[string]*ipEntry),
		every:   every,
		burst:   burst,
	}
}

// Allow reports whether the IP may proceed and spends a token if so.
func (l *IPRateLimit) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[ip]
	if !ok {
		e = &ipEntry{limiter: rate.NewLimiter(rate.Every(l.every), l.burst)}
		l.entries[ip] = e
	}
	e.lastSeen = time.Now()
	return e.limiter.Allow()
}

// Run prunes idle entries until the context ends.
func (l *IPRateLimit) Run(ctx context.Context) {
	t := time.NewTicker(staleAfter)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.cleanup()
		}
	}
}

func (l *IPRateLimit) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for ip, e := range l.entries {
		if now.Sub(e.lastSeen) > staleAfter {
			delete(l.entries, ip)
		}
	}
}
