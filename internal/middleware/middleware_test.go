package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPRateLimitBudget(t *testing.T) {
	l := NewIPRateLimit(time.Hour, 2)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "burst spent, refill is an hour away")

	// Budgets are per address.
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestIPRateLimitDefaults(t *testing.T) {
	l := NewIPRateLimit(0, 0)
	assert.Equal(t, 6*time.Second, l.every)
	assert.Equal(t, 5, l.burst)
}

func TestIPRateLimitCleanup(t *testing.T) {
	l := NewIPRateLimit(time.Hour, 2)
	l.Allow("10.0.0.1")
	l.Allow("10.0.0.2")

	l.mu.Lock()
	l.entries["10.0.0.1"].lastSeen = time.Now().Add(-2 * staleAfter)
	l.mu.Unlock()

	l.cleanup()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.entries, "10.0.0.1")
	assert.Contains(t, l.entries, "10.0.0.2")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:   "socket peer",
			remote: "203.0.113.7:52100",
			want:   "203.0.113.7",
		},
		{
			name:    "single forwarded hop",
			remote:  "10.0.0.1:80",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.4"},
			want:    "198.51.100.4",
		},
		{
			name:    "first hop of a chain",
			remote:  "10.0.0.1:80",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.1, 10.0.0.2"},
			want:    "198.51.100.4",
		},
		{
			name:    "real ip fallback",
			remote:  "10.0.0.1:80",
			headers: map[string]string{"X-Real-IP": " 198.51.100.9 "},
			want:    "198.51.100.9",
		},
		{
			name:   "ipv6 peer",
			remote: "[2001:db8::1]:443",
			want:   "[2001:db8::1]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}
