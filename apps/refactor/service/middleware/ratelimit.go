// Package middleware provides HTTP middleware for the refactor service.
package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pitabwire/util"
	"golang.org/x/time/rate"
)

const (
	cleanupInterval  = 5 * time.Minute
	staleAfter       = 10 * time.Minute
	secondsPerMinute = 60.0
	xForwardedForHdr = "X-Forwarded-For"
)

// RateLimiter applies a per-client token bucket keyed by caller IP.
type RateLimiter struct {
	mu         sync.RWMutex
	clients    map[string]*clientBucket
	ratePerMin int
	burstSize  int
	stop       chan struct{}
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter and starts its janitor goroutine.
func NewRateLimiter(requestsPerMinute, burstSize int) *RateLimiter {
	rl := &RateLimiter{
		clients:    make(map[string]*clientBucket),
		ratePerMin: requestsPerMinute,
		burstSize:  burstSize,
		stop:       make(chan struct{}),
	}
	go rl.janitor()
	return rl
}

// Stop terminates the janitor goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stop)
}

// Allow reports whether a request from the client may proceed.
func (rl *RateLimiter) Allow(clientID string) bool {
	return rl.bucket(clientID).Allow()
}

func (rl *RateLimiter) bucket(clientID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if b, ok := rl.clients[clientID]; ok {
		b.lastSeen = time.Now()
		return b.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(float64(rl.ratePerMin)/secondsPerMinute), rl.burstSize)
	rl.clients[clientID] = &clientBucket{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

func (rl *RateLimiter) janitor() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictStale()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) evictStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := time.Now().Add(-staleAfter)
	for clientID, b := range rl.clients {
		if b.lastSeen.Before(threshold) {
			delete(rl.clients, clientID)
		}
	}
}

func (rl *RateLimiter) retryAfter(clientID string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	b, ok := rl.clients[clientID]
	if !ok {
		return 1
	}

	reservation := b.limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()
	if delay <= 0 {
		return 1
	}
	return int(delay.Seconds()) + 1
}

// clientID derives a stable caller key, preferring X-Forwarded-For when
// the service runs behind a proxy.
func clientID(r *http.Request) string {
	if xff := r.Header.Get(xForwardedForHdr); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if host, _, err := net.SplitHostPort(first); err == nil {
			return "ip:" + host
		}
		return "ip:" + first
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// Middleware wraps a handler with rate limiting.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := clientID(r)
		if rl.Allow(id) {
			next.ServeHTTP(w, r)
			return
		}

		retry := rl.retryAfter(id)
		util.Log(r.Context()).Warn("rate limit exceeded",
			"client_id", id,
			"path", r.URL.Path,
			"retry_after", retry,
		)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":       "rate_limit_exceeded",
			"message":     "Too many requests. Please retry after " + strconv.Itoa(retry) + " seconds.",
			"retry_after": retry,
		})
	})
}
