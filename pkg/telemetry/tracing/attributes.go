package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys set on routing spans.
const (
	AttrRequestID       = "conduit.request_id"
	AttrProvider        = "conduit.provider"
	AttrContentType     = "conduit.content_type"
	AttrEstimatedTokens = "conduit.estimated_tokens"
	AttrStrategy        = "conduit.strategy"
	AttrReason          = "conduit.reason"
	AttrOverallScore    = "conduit.overall_score"
	AttrSuccess         = "conduit.success"
	AttrCost            = "conduit.cost"
)

// SetSelectionAttributes records the outcome of a selection on span.
func SetSelectionAttributes(span trace.Span, requestID, provider, strategy, reason string, score float64) {
	span.SetAttributes(
		attribute.String(AttrRequestID, requestID),
		attribute.String(AttrProvider, provider),
		attribute.String(AttrStrategy, strategy),
		attribute.String(AttrReason, reason),
		attribute.Float64(AttrOverallScore, score),
	)
}

// SetOutcomeAttributes records a reported call outcome on span.
func SetOutcomeAttributes(span trace.Span, requestID, provider string, success bool, cost float64) {
	span.SetAttributes(
		attribute.String(AttrRequestID, requestID),
		attribute.String(AttrProvider, provider),
		attribute.Bool(AttrSuccess, success),
		attribute.Float64(AttrCost, cost),
	)
}
