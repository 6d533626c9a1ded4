package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// MockResponse defines a canned response of a HealthServer path.
type MockResponse struct {
	StatusCode int
	Delay      time.Duration
}

// HealthServer is an httptest server standing in for provider health
// endpoints. Unknown paths answer 404.
type HealthServer struct {
	server    *httptest.Server
	mu        sync.Mutex
	responses map[string]MockResponse
	requests  int
}

// NewHealthServer starts a server. Close it when done.
func NewHealthServer() *HealthServer {
	hs := &HealthServer{responses: make(map[string]MockResponse)}
	hs.server = httptest.NewServer(http.HandlerFunc(hs.handle))
	return hs
}

// URL returns the base URL of the server.
func (hs *HealthServer) URL() string {
	return hs.server.URL
}

// Close shuts the server down.
func (hs *HealthServer) Close() {
	hs.server.Close()
}

// SetResponse configures the response for path.
func (hs *HealthServer) SetResponse(path string, resp MockResponse) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.responses[path] = resp
}

// RequestCount returns the number of requests received.
func (hs *HealthServer) RequestCount() int {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return hs.requests
}

func (hs *HealthServer) handle(w http.ResponseWriter, r *http.Request) {
	hs.mu.Lock()
	hs.requests++
	resp, ok := hs.responses[r.URL.Path]
	hs.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}
	w.WriteHeader(resp.StatusCode)
}

// WaitForCondition polls condition until it holds or timeout elapses.
func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s: %s", timeout, message)
		}
		<-ticker.C
	}
}
