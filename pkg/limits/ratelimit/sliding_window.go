package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow is a rolling counter over a fixed time span.
//
// # Algorithm
//
//  1. Add value to current bucket
//  2. Prune buckets older than window duration
//  3. Sum all remaining buckets to get current usage
//
// A one-minute window with one-second buckets holds at most 60 buckets.
type SlidingWindow struct {
	window     time.Duration
	bucketSize time.Duration
	buckets    []bucket // circular buffer
	head       int      // current write position
	now        func() time.Time
	mu         sync.Mutex
}

type bucket struct {
	timestamp time.Time
	value     int64
}

// NewSlidingWindow creates a sliding window counter using the wall clock.
//
// The number of buckets is window/bucketSize. Smaller bucket sizes provide
// more accuracy but use more memory.
func NewSlidingWindow(window, bucketSize time.Duration) *SlidingWindow {
	return newSlidingWindow(window, bucketSize, time.Now)
}

func newSlidingWindow(window, bucketSize time.Duration, now func() time.Time) *SlidingWindow {
	if bucketSize <= 0 {
		bucketSize = time.Second
	}
	numBuckets := int(window / bucketSize)
	if numBuckets == 0 {
		numBuckets = 1
	}

	return &SlidingWindow{
		window:     window,
		bucketSize: bucketSize,
		buckets:    make([]bucket, numBuckets),
		now:        now,
	}
}

// Add adds value to the current time bucket.
func (sw *SlidingWindow) Add(value int64) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.pruneLocked(now)
	sw.findOrCreateBucketLocked(now).value += value
}

// Sum returns the total across all buckets still inside the window.
func (sw *SlidingWindow) Sum() int64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.pruneLocked(sw.now())

	var sum int64
	for i := range sw.buckets {
		if !sw.buckets[i].timestamp.IsZero() {
			sum += sw.buckets[i].value
		}
	}
	return sum
}

// Reset clears all buckets.
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	for i := range sw.buckets {
		sw.buckets[i] = bucket{}
	}
	sw.head = 0
}

// pruneLocked clears buckets that started before now-window.
func (sw *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-sw.window)
	for i := range sw.buckets {
		if !sw.buckets[i].timestamp.IsZero() && !sw.buckets[i].timestamp.After(cutoff) {
			sw.buckets[i] = bucket{}
		}
	}
}

// findOrCreateBucketLocked returns the bucket for now, recycling an empty
// slot or the oldest bucket when none matches.
func (sw *SlidingWindow) findOrCreateBucketLocked(now time.Time) *bucket {
	bucketTime := now.Truncate(sw.bucketSize)

	if sw.buckets[sw.head].timestamp.Equal(bucketTime) {
		return &sw.buckets[sw.head]
	}
	for i := range sw.buckets {
		if sw.buckets[i].timestamp.Equal(bucketTime) {
			return &sw.buckets[i]
		}
	}

	target := -1
	for i := range sw.buckets {
		if sw.buckets[i].timestamp.IsZero() {
			target = i
			break
		}
	}
	if target == -1 {
		target = 0
		for i := 1; i < len(sw.buckets); i++ {
			if sw.buckets[i].timestamp.Before(sw.buckets[target].timestamp) {
				target = i
			}
		}
	}

	sw.buckets[target] = bucket{timestamp: bucketTime}
	sw.head = target
	return &sw.buckets[target]
}

// TokenCounter keeps one SlidingWindow of routed tokens per provider.
type TokenCounter struct {
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*SlidingWindow
}

// NewTokenCounter creates a token counter with the given window span. A nil
// clock means time.Now.
func NewTokenCounter(window time.Duration, now func() time.Time) *TokenCounter {
	if window <= 0 {
		window = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &TokenCounter{
		window:  window,
		now:     now,
		windows: make(map[string]*SlidingWindow),
	}
}

// Add records tokens routed to a provider.
func (tc *TokenCounter) Add(providerID string, tokens int64) {
	tc.mu.Lock()
	sw, ok := tc.windows[providerID]
	if !ok {
		sw = newSlidingWindow(tc.window, tc.window/60, tc.now)
		tc.windows[providerID] = sw
	}
	tc.mu.Unlock()

	sw.Add(tokens)
}

// Sum returns the tokens routed to a provider within the window.
func (tc *TokenCounter) Sum(providerID string) int64 {
	tc.mu.Lock()
	sw, ok := tc.windows[providerID]
	tc.mu.Unlock()

	if !ok {
		return 0
	}
	return sw.Sum()
}

// Window returns the span of the counter.
func (tc *TokenCounter) Window() time.Duration {
	return tc.window
}
