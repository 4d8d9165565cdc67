package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// visitor tracks the remaining token budget for one client address.
type visitor struct {
	budget   float64
	lastSeen time.Time
}

// ClientLimiter applies a token-bucket budget per client address. Idle
// clients are swept inline on the next request, so the limiter needs no
// background goroutine or shutdown hook.
type ClientLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	perSecond float64
	burst     float64
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewClientLimiter allows perSecond sustained requests per client with
// bursts up to burst.
func NewClientLimiter(perSecond float64, burst int) *ClientLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ClientLimiter{
		visitors:  make(map[string]*visitor),
		perSecond: perSecond,
		burst:     float64(burst),
		idleTTL:   10 * time.Minute,
		now:       time.Now,
	}
}

// Take consumes one token for the client. When the budget is exhausted it
// reports how long until the next token frees up.
func (l *ClientLimiter) Take(client string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	v, ok := l.visitors[client]
	if !ok {
		v = &visitor{budget: l.burst}
		l.visitors[client] = v
	} else {
		v.budget += now.Sub(v.lastSeen).Seconds() * l.perSecond
		if v.budget > l.burst {
			v.budget = l.burst
		}
	}
	v.lastSeen = now

	if v.budget < 1 {
		wait := time.Duration((1 - v.budget) / l.perSecond * float64(time.Second))
		return false, wait
	}
	v.budget--
	return true, 0
}

func (l *ClientLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for client, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idleTTL {
			delete(l.visitors, client)
		}
	}
}

// RateLimit rejects clients exceeding their token budget with 429 and a
// Retry-After hint.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	limiter := NewClientLimiter(perSecond, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := limiter.Take(clientAddr(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait/time.Second)+1))
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr prefers the address resolved by chi's RealIP middleware.
func clientAddr(r *http.Request) string {
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
