// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry provides OpenTelemetry helpers for the memory decision
// core: span creation, error recording, and pre-defined metric instruments.
//
// Span attribute names form a stable contract with dashboards and tests.
// Graph attributes use the "graph." prefix; action and reward attributes use
// "action." and "reward." respectively. Tenancy attributes are "tenant_id"
// and "project_id".
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Stable span attribute keys. Dashboards and tests depend on these names.
const (
	AttrTenantID  = "tenant_id"
	AttrProjectID = "project_id"

	AttrGraphActionType  = "graph.action_type"
	AttrGraphNodesBefore = "graph.nodes_before"
	AttrGraphNodesAfter  = "graph.nodes_after"
	AttrGraphEdgesBefore = "graph.edges_before"
	AttrGraphEdgesAfter  = "graph.edges_after"
	AttrGraphNodesDelta  = "graph.nodes_delta"
	AttrGraphEdgesDelta  = "graph.edges_delta"
	AttrGraphNodeChurn   = "graph.node_churn"
	AttrGraphEdgeChurn   = "graph.edge_churn"
	AttrGraphSpectralGap = "graph.spectral_gap"
	AttrGraphConverging  = "graph.is_converging"
	AttrGraphHistoryLen  = "graph.history_length"

	AttrActionType             = "action.type"
	AttrActionValidationResult = "action.validation_result"
	AttrActionEstimatedTokens  = "action.estimated_tokens"
	AttrActionEstimatedCostUSD = "action.estimated_cost_usd"
	AttrActionEstimatedLatency = "action.estimated_latency_ms"

	AttrRewardQuality = "reward.quality_score"
	AttrRewardTotal   = "reward.total"

	AttrOutcomeLabel = "outcome.label"
)

// StartSpan creates a new span from the context using the global tracer.
//
// Inputs:
//
//	ctx - Parent context. May contain an existing span context.
//	tracerName - Tracer name (typically package path, e.g., "memory.graph").
//	spanName - Span name ("package.Type.Method" or an operation name).
//	opts - Optional span start options.
//
// Outputs:
//
//	context.Context - Context with the new span attached.
//	trace.Span - The created span. Caller must call span.End().
//
// Thread Safety: Safe for concurrent use.
func StartSpan(ctx context.Context, tracerName, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, opts...)
}

// SpanFromContext returns the current span from the context, or a no-op
// span if none is present.
//
// Thread Safety: Safe for concurrent use.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// RecordError records an error on the span and sets the span status to
// Error. Nil span or nil error is a no-op.
//
// Thread Safety: Safe for concurrent use.
func RecordError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}
	opts := make([]trace.EventOption, 0, 1)
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// RecordErrorf records a formatted error message on the span.
//
// Thread Safety: Safe for concurrent use.
func RecordErrorf(span trace.Span, format string, args ...any) {
	if span == nil {
		return
	}
	err := fmt.Errorf(format, args...)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks the span as successful. Nil span is a no-op.
//
// Thread Safety: Safe for concurrent use.
func SetSpanOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// AddSpanEvent adds a timestamped event to the span with optional
// attributes. Nil span is a no-op.
//
// Thread Safety: Safe for concurrent use.
func AddSpanEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanAttributes sets attributes on the span. Nil span is a no-op.
//
// Thread Safety: Safe for concurrent use.
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}

// TraceID returns the hex-encoded trace ID from the context, or an empty
// string when no valid span context is present.
//
// Thread Safety: Safe for concurrent use.
func TraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}
