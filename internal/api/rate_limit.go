package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per client and overall.
type RateLimiter struct {
	client *scopedLimiter
	global *rate.Limiter
}

type scopedLimiter struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rate  rate.Limit
	burst int
}

func newScopedLimiter(perMinute int) *scopedLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &scopedLimiter{
		m:     make(map[string]*rate.Limiter),
		rate:  rate.Limit(float64(perMinute) / 60.0),
		burst: perMinute,
	}
}

func (s *scopedLimiter) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.m[key]
	if !ok {
		lim = rate.NewLimiter(s.rate, s.burst)
		s.m[key] = lim
	}
	return lim.Allow()
}

// NewRateLimiter allows clientPerMinute requests per client and
// globalPerMinute requests in total. A non-positive global budget is ten
// times the client budget.
func NewRateLimiter(clientPerMinute, globalPerMinute int) *RateLimiter {
	client := newScopedLimiter(clientPerMinute)
	if globalPerMinute <= 0 {
		globalPerMinute = 10 * client.burst
	}
	return &RateLimiter{
		client: client,
		global: rate.NewLimiter(rate.Limit(float64(globalPerMinute)/60.0), globalPerMinute),
	}
}

// Allow reports whether client may make a request now.
func (r *RateLimiter) Allow(client string) bool {
	if !r.global.Allow() {
		return false
	}
	return r.client.allow(client)
}
