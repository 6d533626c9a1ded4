package monitor

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"mercator-hq/conduit/pkg/registry"
	"mercator-hq/conduit/pkg/telemetry/tracing"
)

// Prober checks whether a provider is reachable.
type Prober interface {
	Probe(ctx context.Context, p registry.Provider) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, p registry.Provider) error

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, p registry.Provider) error {
	return f(ctx, p)
}

// NoopProber reports every provider as reachable. Health is then driven
// entirely by reported request outcomes.
type NoopProber struct{}

// Probe always succeeds unless ctx is already done.
func (NoopProber) Probe(ctx context.Context, p registry.Provider) error {
	if err := ctx.Err(); err != nil {
		return &ProbeError{ProviderID: p.ID, Err: err}
	}
	return nil
}

// HTTPProber issues a GET to each provider's health URL. Providers without a
// health URL always pass. Transport errors and 5xx responses fail.
type HTTPProber struct {
	Client *http.Client
}

// NewHTTPProber creates an HTTPProber using client, or http.DefaultClient
// when client is nil.
func NewHTTPProber(client *http.Client) *HTTPProber {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProber{Client: client}
}

// Probe performs the health request.
func (h *HTTPProber) Probe(ctx context.Context, p registry.Provider) error {
	if p.HealthURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.HealthURL, nil)
	if err != nil {
		return &ProbeError{ProviderID: p.ID, Err: fmt.Errorf("build request: %w", err)}
	}
	tracing.Inject(ctx, req.Header)

	resp, err := h.Client.Do(req)
	if err != nil {
		return &ProbeError{ProviderID: p.ID, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= http.StatusInternalServerError {
		return &ProbeError{
			ProviderID: p.ID,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	return nil
}
