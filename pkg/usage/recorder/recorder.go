// Package recorder writes usage events to durable storage asynchronously,
// so that provider selection never waits on a database.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/conduit/pkg/usage"
	"mercator-hq/conduit/pkg/usage/storage"
)

// Config contains configuration for the usage recorder.
type Config struct {
	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout is the timeout for writing one event to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() Config {
	return Config{
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Stats are the recorder counters.
type Stats struct {
	Written int64 `json:"written"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

// Recorder queues usage events on a buffered channel drained by a single
// worker. When the buffer is full, events are dropped and counted.
type Recorder struct {
	backend storage.Backend
	config  Config
	logger  *slog.Logger

	mu     sync.RWMutex // guards closed and sends on events
	closed bool
	events chan usage.Event
	wg     sync.WaitGroup

	written atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// New creates a recorder over the backend and starts its worker.
func New(backend storage.Backend, config Config) *Recorder {
	def := DefaultConfig()
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = def.AsyncBuffer
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}

	r := &Recorder{
		backend: backend,
		config:  config,
		logger:  slog.Default().With("component", "usage.recorder"),
		events:  make(chan usage.Event, config.AsyncBuffer),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("usage recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)
	return r
}

// Record enqueues an event. It never blocks; events arriving while the
// buffer is full or after Close are dropped.
func (r *Recorder) Record(ev usage.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.events <- ev:
	default:
		if r.dropped.Add(1)%100 == 1 {
			r.logger.Warn("usage buffer full, dropping events",
				"request_id", ev.RequestID,
				"dropped_total", r.dropped.Load(),
			)
		}
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for ev := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
		err := r.backend.Save(ctx, ev)
		cancel()

		if err != nil {
			r.failed.Add(1)
			r.logger.Error("failed to write usage event",
				"request_id", ev.RequestID,
				"provider_id", ev.ProviderID,
				"error", err,
			)
			continue
		}
		r.written.Add(1)
	}
}

// Close stops accepting events and waits until queued events are written.
// It does not close the backend.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("usage recorder stopped",
		"written", r.written.Load(),
		"failed", r.failed.Load(),
		"dropped", r.dropped.Load(),
	)
}

// Stats returns the recorder counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Written: r.written.Load(),
		Failed:  r.failed.Load(),
		Dropped: r.dropped.Load(),
	}
}

// Pending returns the number of queued events.
func (r *Recorder) Pending() int {
	return len(r.events)
}
