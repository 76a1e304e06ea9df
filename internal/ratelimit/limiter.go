// Package ratelimit provides fixed-window attempt limiting for sensitive
// actions such as login and password reset. Keys follow the
// "action:subject" convention, e.g. "login:demo:demo@demo.com" or
// "forgot-password:10.0.0.1".
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is the injectable rate-limiting capability. The Memory
// implementation is process-local; deployments with more than one instance
// should use the Redis implementation so the window is shared. Semantics
// are identical regardless of backing store: fixed window, count + reset.
type Limiter interface {
	// Allow records an attempt for key and reports whether it falls within
	// the window's budget. The attempt is counted either way.
	Allow(key string) bool
	// Clear drops the bucket for key. Called on successful authentication
	// so a legitimate user is not penalized for earlier typos.
	Clear(key string)
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Memory is an in-process fixed-window Limiter. Increments are atomic per
// call under a single mutex; contention is negligible at login rates.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	max     int
	window  time.Duration
	stop    chan struct{}
}

// NewMemory creates a Memory limiter allowing max attempts per window and
// starts a background sweep that drops expired buckets.
func NewMemory(max int, window time.Duration) *Memory {
	m := &Memory{
		buckets: make(map[string]*bucket),
		max:     max,
		window:  window,
		stop:    make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

func (m *Memory) Allow(key string) bool {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.buckets[key]
	if b == nil || now.After(b.resetAt) {
		m.buckets[key] = &bucket{count: 1, resetAt: now.Add(m.window)}
		return true
	}
	b.count++
	return b.count <= m.max
}

func (m *Memory) Clear(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets, key)
}

// Close stops the background sweep.
func (m *Memory) Close() {
	close(m.stop)
}

func (m *Memory) sweepLoop() {
	ticker := time.NewTicker(m.window)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

func (m *Memory) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, b := range m.buckets {
		if now.After(b.resetAt) {
			delete(m.buckets, k)
		}
	}
}
