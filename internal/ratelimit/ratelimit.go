package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a token bucket. Each connection gets its own, so one
// flood-happy client cannot starve the others.
type Limiter struct {
	mu       sync.Mutex
	rate     float64 // tokens added per second
	capacity int
	tokens   float64
	last     time.Time
}

func NewLimiter(rate float64, capacity int) *Limiter {
	return &Limiter{
		rate:     rate,
		capacity: capacity,
		tokens:   float64(capacity),
		last:     time.Now(),
	}
}

// Allow reports whether one event may pass right now.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	l.last = now
	if l.tokens > float64(l.capacity) {
		l.tokens = float64(l.capacity)
	}

	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}
