// Package ratelimit provides per-provider request and token accounting.
//
// # Overview
//
// The package implements two counters:
//
//   - Limiter: fixed request windows per provider. A provider has capacity
//     while its usage in the current window is below its configured limit.
//   - TokenCounter: a sliding window of tokens routed to each provider,
//     reported as throughput over the last minute.
//
// # Fixed Windows
//
// Each provider owns one window. The window rolls over lazily: the first
// call at or after resetTime starts a new window with zeroed counters.
// Consume always counts the request, even past the limit; the caller is
// expected to check HasCapacity first under its own lock.
//
//	limiter := ratelimit.NewLimiter(reg)
//	if limiter.HasCapacity("gemini-pro") {
//	    limiter.Consume("gemini-pro")
//	}
//
// Burst capacity is derived from the limit (floor(limit * 0.2) by default)
// and reported alongside each window.
//
// # Sliding Window
//
// The sliding window tracks values over a rolling time period:
//
//	tokens := ratelimit.NewTokenCounter(time.Minute, nil)
//	tokens.Add("gemini-pro", 750)
//	perMinute := tokens.Sum("gemini-pro")
//
// # Thread Safety
//
// All types are safe for concurrent use.
package ratelimit
