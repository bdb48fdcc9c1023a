// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package action

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianMemory/services/memory/state"
	"github.com/AleutianAI/AleutianMemory/services/memory/telemetry"
)

// RetrieveEpisodic retrieves recent event-based memories. Relevance in the
// executing layer combines embedding similarity with temporal decay; here
// only admission and cost matter.
//
// Zero-value fields take the defaults: K=10, Threshold=0.7,
// TimeWindowDays=7.
type RetrieveEpisodic struct {
	// K is the number of memories to retrieve.
	K int `json:"k,omitempty"`

	// Threshold is the minimum relevance in [0,1].
	Threshold float64 `json:"threshold,omitempty"`

	// TimeWindowDays restricts retrieval to the last N days.
	TimeWindowDays int `json:"time_window_days,omitempty"`
}

func (a RetrieveEpisodic) k() int {
	if a.K <= 0 {
		return 10
	}
	return a.K
}

func (a RetrieveEpisodic) Type() ActionType { return TypeRetrieveEpisodic }

// IsValidForState admits the action when budget remains and the episodic
// layer is non-empty.
func (a RetrieveEpisodic) IsValidForState(ctx context.Context, s *state.System) bool {
	_, span := telemetry.StartSpan(ctx, tracerName, "RetrieveEpisodic.IsValidForState")
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrActionType, string(a.Type())),
		attribute.String(telemetry.AttrTenantID, s.TenantID),
		attribute.String(telemetry.AttrProjectID, s.ProjectID),
		attribute.Int("memory.episodic_count", s.Memory.Episodic.Count),
	)

	if s.Budget.IsExhausted() {
		span.SetAttributes(
			attribute.String(telemetry.AttrActionValidationResult, "failed_budget_exhausted"),
			attribute.String(telemetry.AttrOutcomeLabel, "fail"),
		)
		return false
	}
	if s.Memory.Episodic.Count == 0 {
		span.SetAttributes(
			attribute.String(telemetry.AttrActionValidationResult, "failed_no_memories"),
			attribute.String(telemetry.AttrOutcomeLabel, "fail"),
		)
		return false
	}

	span.SetAttributes(
		attribute.String(telemetry.AttrActionValidationResult, "success"),
		attribute.String(telemetry.AttrOutcomeLabel, "success"),
	)
	return true
}

// EstimateCost models episodic retrieval as pure lookup work: roughly 100
// tokens and 5ms per memory, no model cost.
func (a RetrieveEpisodic) EstimateCost(ctx context.Context, s *state.System) CostEstimate {
	_, span := telemetry.StartSpan(ctx, tracerName, "RetrieveEpisodic.EstimateCost")
	defer span.End()

	estimate := CostEstimate{
		Tokens:    a.k() * 100,
		CostUSD:   0.0,
		LatencyMS: a.k() * 5,
	}

	span.SetAttributes(
		attribute.String(telemetry.AttrActionType, string(a.Type())),
		attribute.Int(telemetry.AttrActionEstimatedTokens, estimate.Tokens),
		attribute.Int(telemetry.AttrActionEstimatedLatency, estimate.LatencyMS),
	)
	return estimate
}

func (a RetrieveEpisodic) Parameters() map[string]any {
	threshold := a.Threshold
	if threshold == 0 {
		threshold = 0.7
	}
	window := a.TimeWindowDays
	if window == 0 {
		window = 7
	}
	return map[string]any{"k": a.k(), "threshold": threshold, "time_window_days": window}
}

// RetrieveWorking retrieves from the working memory buffer. Cheaper and
// faster than episodic retrieval since the buffer is already hot.
//
// Zero-value K defaults to 5.
type RetrieveWorking struct {
	K int `json:"k,omitempty"`

	// ActiveOnly restricts retrieval to currently active memories.
	ActiveOnly bool `json:"active_only,omitempty"`
}

func (a RetrieveWorking) k() int {
	if a.K <= 0 {
		return 5
	}
	return a.K
}

func (a RetrieveWorking) Type() ActionType { return TypeRetrieveWorking }

func (a RetrieveWorking) IsValidForState(ctx context.Context, s *state.System) bool {
	return !s.Budget.IsExhausted() && s.Memory.Working.Count > 0
}

func (a RetrieveWorking) EstimateCost(ctx context.Context, s *state.System) CostEstimate {
	return CostEstimate{Tokens: a.k() * 80, CostUSD: 0.0, LatencyMS: a.k() * 3}
}

func (a RetrieveWorking) Parameters() map[string]any {
	return map[string]any{"k": a.k(), "active_only": a.ActiveOnly}
}

// RetrieveSemantic retrieves consolidated conceptual knowledge, optionally
// expanding results through knowledge graph traversal.
//
// Zero-value fields take the defaults: K=20, GraphDepth=2.
type RetrieveSemantic struct {
	K int `json:"k,omitempty"`

	// UseGraph enables graph traversal expansion. Requires a non-empty
	// graph.
	UseGraph bool `json:"use_graph,omitempty"`

	// GraphDepth bounds the traversal when UseGraph is set.
	GraphDepth int `json:"graph_depth,omitempty"`
}

func (a RetrieveSemantic) k() int {
	if a.K <= 0 {
		return 20
	}
	return a.K
}

func (a RetrieveSemantic) depth() int {
	if a.GraphDepth <= 0 {
		return 2
	}
	return a.GraphDepth
}

func (a RetrieveSemantic) Type() ActionType { return TypeRetrieveSemantic }

// IsValidForState additionally requires a non-empty graph when traversal
// was requested.
func (a RetrieveSemantic) IsValidForState(ctx context.Context, s *state.System) bool {
	if s.Budget.IsExhausted() || s.Memory.Semantic.Count == 0 {
		return false
	}
	if a.UseGraph && s.Graph.NodeCount == 0 {
		return false
	}
	return true
}

// EstimateCost adds 50ms per traversal level on top of the base lookup
// cost when graph expansion is enabled.
func (a RetrieveSemantic) EstimateCost(ctx context.Context, s *state.System) CostEstimate {
	latency := a.k() * 10
	if a.UseGraph {
		latency += a.depth() * 50
	}
	return CostEstimate{Tokens: a.k() * 150, CostUSD: 0.0, LatencyMS: latency}
}

func (a RetrieveSemantic) Parameters() map[string]any {
	return map[string]any{"k": a.k(), "use_graph": a.UseGraph, "graph_depth": a.depth()}
}

// RetrieveLongTerm retrieves stable, high-importance memories.
//
// Zero-value fields take the defaults: K=10, MinStability=0.8.
type RetrieveLongTerm struct {
	K int `json:"k,omitempty"`

	// MinStability is the minimum stability score in [0,1].
	MinStability float64 `json:"min_stability,omitempty"`
}

func (a RetrieveLongTerm) k() int {
	if a.K <= 0 {
		return 10
	}
	return a.K
}

func (a RetrieveLongTerm) Type() ActionType { return TypeRetrieveLongTerm }

func (a RetrieveLongTerm) IsValidForState(ctx context.Context, s *state.System) bool {
	return !s.Budget.IsExhausted() && s.Memory.LongTerm.Count > 0
}

func (a RetrieveLongTerm) EstimateCost(ctx context.Context, s *state.System) CostEstimate {
	return CostEstimate{Tokens: a.k() * 200, CostUSD: 0.0, LatencyMS: a.k() * 15}
}

func (a RetrieveLongTerm) Parameters() map[string]any {
	stability := a.MinStability
	if stability == 0 {
		stability = 0.8
	}
	return map[string]any{"k": a.k(), "min_stability": stability}
}

// RetrieveReflective retrieves meta-insights produced by past reflection
// passes.
//
// Zero-value fields take the defaults: K=5, Level="L1".
type RetrieveReflective struct {
	K int `json:"k,omitempty"`

	// Level selects the reflection depth: "L1", "L2", or "L3".
	Level string `json:"level,omitempty"`
}

func (a RetrieveReflective) k() int {
	if a.K <= 0 {
		return 5
	}
	return a.K
}

func (a RetrieveReflective) level() string {
	if a.Level == "" {
		return "L1"
	}
	return a.Level
}

func (a RetrieveReflective) Type() ActionType { return TypeRetrieveReflective }

func (a RetrieveReflective) IsValidForState(ctx context.Context, s *state.System) bool {
	return !s.Budget.IsExhausted() && s.Memory.Reflective.Count > 0
}

func (a RetrieveReflective) EstimateCost(ctx context.Context, s *state.System) CostEstimate {
	return CostEstimate{Tokens: a.k() * 300, CostUSD: 0.0, LatencyMS: a.k() * 20}
}

func (a RetrieveReflective) Parameters() map[string]any {
	return map[string]any{"k": a.k(), "level": a.level()}
}
