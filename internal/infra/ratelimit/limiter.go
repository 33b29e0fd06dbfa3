// Package ratelimit holds the process-local limiter used when Redis is not configured.
package ratelimit

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Limiter counts hits per key in fixed windows. At most maxKeys windows are tracked;
// when full, expired windows are dropped first and then the oldest ones.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	maxKeys int
	now     func() time.Time

	buckets map[string]*bucket
	byStart bucketHeap
}

type bucket struct {
	key   string
	start time.Time
	count int
	index int
}

func New(limit int, window time.Duration, maxKeys int) *Limiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	return &Limiter{
		limit:   limit,
		window:  window,
		maxKeys: maxKeys,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// WithClock replaces the time source; used by tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow never fails; the error is there to match the Redis limiter.
func (l *Limiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()

	b, ok := l.buckets[key]
	if ok && now.Sub(b.start) >= l.window {
		b.start = now
		b.count = 0
		heap.Fix(&l.byStart, b.index)
	}
	if !ok {
		l.evict(now)
		b = &bucket{key: key, start: now}
		l.buckets[key] = b
		heap.Push(&l.byStart, b)
	}
	b.count++
	if b.count > l.limit {
		return false, b.start.Add(l.window).Sub(now), nil
	}
	return true, 0, nil
}

// Len reports how many keys are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) evict(now time.Time) {
	for l.byStart.Len() > 0 {
		oldest := l.byStart[0]
		if now.Sub(oldest.start) < l.window && len(l.buckets) < l.maxKeys {
			return
		}
		heap.Pop(&l.byStart)
		delete(l.buckets, oldest.key)
	}
}

type bucketHeap []*bucket

func (h bucketHeap) Len() int           { return len(h) }
func (h bucketHeap) Less(i, j int) bool { return h[i].start.Before(h[j].start) }
func (h bucketHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *bucketHeap) Push(x any) {
	b := x.(*bucket)
	b.index = len(*h)
	*h = append(*h, b)
}
func (h *bucketHeap) Pop() any {
	old := *h
	n := len(old)
	b := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return b
}
