package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/conduit/pkg/config"
)

func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	tr := newWithProvider(config.TracingConfig{Enabled: true, ServiceName: "test"}, tp)
	t.Cleanup(func() { _ = tr.Shutdown(context.Background()) })
	return tr, exp
}

// ============================================================================
// Tracer Tests
// ============================================================================

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		config      config.TracingConfig
		wantErr     bool
		wantEnabled bool
	}{
		{
			name:   "disabled tracing",
			config: config.TracingConfig{Enabled: false, ServiceName: "test-service"},
		},
		{
			name: "enabled with always sampler",
			config: config.TracingConfig{
				Enabled:     true,
				Sampler:     SamplerAlways,
				Endpoint:    "localhost:4317",
				ServiceName: "test-service",
				Insecure:    true,
				Timeout:     time.Second,
			},
			wantEnabled: true,
		},
		{
			name: "enabled with ratio sampler",
			config: config.TracingConfig{
				Enabled:     true,
				Sampler:     SamplerRatio,
				SampleRatio: 0.5,
				Endpoint:    "localhost:4317",
				ServiceName: "test-service",
				Insecure:    true,
			},
			wantEnabled: true,
		},
		{
			name: "invalid sampler",
			config: config.TracingConfig{
				Enabled:  true,
				Sampler:  "sometimes",
				Endpoint: "localhost:4317",
			},
			wantErr: true,
		},
		{
			name: "ratio out of range",
			config: config.TracingConfig{
				Enabled:     true,
				Sampler:     SamplerRatio,
				SampleRatio: 1.5,
				Endpoint:    "localhost:4317",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config, "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()
				_ = tracer.Shutdown(ctx)
			}()

			if tracer.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.wantEnabled)
			}

			_, span := tracer.Start(context.Background(), "test-span")
			span.End()
		})
	}
}

func TestTracer_DisabledIsNoop(t *testing.T) {
	tracer, err := New(config.TracingConfig{}, "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, span := tracer.Start(context.Background(), "noop")
	defer span.End()

	if span.SpanContext().IsValid() {
		t.Error("disabled tracer should produce invalid span contexts")
	}
	if TraceID(ctx) != "" {
		t.Errorf("TraceID() = %q, want empty", TraceID(ctx))
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestTracer_RecordsSpans(t *testing.T) {
	tracer, exp := newRecordingTracer(t)

	ctx, parent := tracer.Start(context.Background(), "parent")
	_, child := tracer.Tracer("conduit/routing").Start(ctx, "routing.select")
	SetSelectionAttributes(child, "req_1_abc", "gpt-4", "balanced", "performance", 81.5)
	child.End()
	parent.End()

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}
	sel := spans[0]
	if sel.Name != "routing.select" {
		t.Errorf("first span = %q, want routing.select", sel.Name)
	}
	if sel.Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("routing span should be a child of the parent span")
	}

	attrs := make(map[string]string)
	for _, kv := range sel.Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[AttrProvider] != "gpt-4" {
		t.Errorf("%s = %q, want gpt-4", AttrProvider, attrs[AttrProvider])
	}
	if attrs[AttrReason] != "performance" {
		t.Errorf("%s = %q, want performance", AttrReason, attrs[AttrReason])
	}
}

func TestSetError(t *testing.T) {
	tracer, exp := newRecordingTracer(t)

	_, span := tracer.Start(context.Background(), "failing")
	SetError(span, nil)
	SetError(span, errors.New("no providers available"))
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("status = %v, want Error", spans[0].Status.Code)
	}
	if len(spans[0].Events) != 1 {
		t.Errorf("events = %d, want 1 recorded error", len(spans[0].Events))
	}
}

// ============================================================================
// Middleware Tests
// ============================================================================

func TestTracer_Middleware(t *testing.T) {
	tracer, exp := newRecordingTracer(t)

	var innerTraceID string
	handler := tracer.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		innerTraceID = TraceID(r.Context())
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	const remoteTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodPost, "/v1/select", nil)
	req.Header.Set("traceparent", "00-"+remoteTraceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if innerTraceID != remoteTraceID {
		t.Errorf("handler trace ID = %q, want %q", innerTraceID, remoteTraceID)
	}
	if got := rec.Header().Get("X-Trace-ID"); got != remoteTraceID {
		t.Errorf("X-Trace-ID = %q, want %q", got, remoteTraceID)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported %d spans, want 1", len(spans))
	}
	if spans[0].Name != "POST /v1/select" {
		t.Errorf("span name = %q, want POST /v1/select", spans[0].Name)
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("status = %v, want Error for a 503", spans[0].Status.Code)
	}
}

func TestInject(t *testing.T) {
	tracer, _ := newRecordingTracer(t)

	ctx, span := tracer.Start(context.Background(), "probe")
	defer span.End()

	headers := http.Header{}
	Inject(ctx, headers)

	if headers.Get("traceparent") == "" {
		t.Fatal("Inject() did not set traceparent")
	}
	if got := TraceID(Extract(context.Background(), headers)); got != TraceID(ctx) {
		t.Errorf("round-tripped trace ID = %q, want %q", got, TraceID(ctx))
	}
}

// ============================================================================
// Sampler Tests
// ============================================================================

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.1, false},
		{SamplerRatio, 0, false},
		{SamplerRatio, 1, false},
		{SamplerRatio, -0.1, true},
		{SamplerRatio, 1.1, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			sampler, err := createSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Fatalf("createSampler() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && sampler == nil {
				t.Error("createSampler() returned nil sampler")
			}
		})
	}
}
