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

// GenerateReflection clusters accumulated memories and synthesizes
// meta-insights, one model call per cluster. The most involved maintenance
// action: clustering plus model synthesis plus embedding generation.
//
// Zero-value fields take the defaults: MaxMemories=100, MinClusterSize=5,
// Level="L1".
type GenerateReflection struct {
	// MaxMemories bounds how many memories feed the clustering pass.
	MaxMemories int `json:"max_memories,omitempty"`

	// MinClusterSize is the smallest cluster worth synthesizing an
	// insight from.
	MinClusterSize int `json:"min_cluster_size,omitempty"`

	// Level selects the reflection depth: "L1", "L2", or "L3".
	Level string `json:"level,omitempty"`
}

func (a GenerateReflection) maxMemories() int {
	if a.MaxMemories <= 0 {
		return 100
	}
	return a.MaxMemories
}

func (a GenerateReflection) minClusterSize() int {
	if a.MinClusterSize <= 0 {
		return 5
	}
	return a.MinClusterSize
}

func (a GenerateReflection) level() string {
	if a.Level == "" {
		return "L1"
	}
	return a.Level
}

func (a GenerateReflection) Type() ActionType { return TypeGenerateReflection }

// IsValidForState requires budget and at least 2*MinClusterSize memories
// across the episodic and semantic layers, so that clustering can produce
// at least two meaningful groups.
func (a GenerateReflection) IsValidForState(ctx context.Context, s *state.System) bool {
	_, span := telemetry.StartSpan(ctx, tracerName, "GenerateReflection.IsValidForState")
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrActionType, string(a.Type())),
		attribute.String(telemetry.AttrTenantID, s.TenantID),
		attribute.String(telemetry.AttrProjectID, s.ProjectID),
	)

	if s.Budget.IsExhausted() {
		span.SetAttributes(
			attribute.String(telemetry.AttrActionValidationResult, "failed_budget_exhausted"),
			attribute.String(telemetry.AttrOutcomeLabel, "fail"),
		)
		return false
	}

	available := s.Memory.Episodic.Count + s.Memory.Semantic.Count
	required := a.minClusterSize() * 2
	span.SetAttributes(
		attribute.Int("memory.total_available", available),
		attribute.Int("memory.required", required),
	)

	if available < required {
		span.SetAttributes(
			attribute.String(telemetry.AttrActionValidationResult, "failed_insufficient_memories"),
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

// EstimateCost models MaxMemories/MinClusterSize clusters at ~2000 tokens
// each, priced at a mixed $1 per million tokens, with 5s of clustering
// overhead plus 3s of synthesis per cluster.
func (a GenerateReflection) EstimateCost(ctx context.Context, s *state.System) CostEstimate {
	clusters := a.maxMemories() / a.minClusterSize()
	tokens := clusters * 2000

	return CostEstimate{
		Tokens:    tokens,
		CostUSD:   float64(tokens) / 1e6 * 1.0,
		LatencyMS: 5000 + clusters*3000,
	}
}

func (a GenerateReflection) Parameters() map[string]any {
	return map[string]any{
		"max_memories":     a.maxMemories(),
		"min_cluster_size": a.minClusterSize(),
		"level":            a.level(),
	}
}

// UpdateGraph applies one knowledge graph transformation. The heavy
// lifting lives in the graph package; this catalog entry only prices the
// operation for planning.
//
// Operation names follow the graph package's action types; zero value
// defaults to "add_node".
type UpdateGraph struct {
	// Operation names the transformation: "add_node", "add_edge",
	// "update_edge_weight", "merge_nodes", "prune_node", "prune_edge".
	Operation string `json:"operation,omitempty"`

	// NodeData and EdgeData carry the transformation payload through to
	// execution untouched.
	NodeData map[string]any `json:"node_data,omitempty"`
	EdgeData map[string]any `json:"edge_data,omitempty"`
}

func (a UpdateGraph) operation() string {
	if a.Operation == "" {
		return "add_node"
	}
	return a.Operation
}

func (a UpdateGraph) Type() ActionType { return TypeUpdateGraph }

// IsValidForState always admits graph updates: the operator initializes an
// empty graph on demand and absorbs malformed payloads on its own.
func (a UpdateGraph) IsValidForState(ctx context.Context, s *state.System) bool {
	return true
}

// EstimateCost is pure local latency: merges pay for entity resolution,
// prunes for graph analysis, everything else is a map update.
func (a UpdateGraph) EstimateCost(ctx context.Context, s *state.System) CostEstimate {
	latency := 20
	switch a.operation() {
	case "merge_nodes":
		latency = 100
	case "prune_node", "prune_edge":
		latency = 200
	}
	return CostEstimate{Tokens: 0, CostUSD: 0.0, LatencyMS: latency}
}

func (a UpdateGraph) Parameters() map[string]any {
	params := map[string]any{"operation": a.operation()}
	if a.NodeData != nil {
		params["node_data"] = a.NodeData
	}
	if a.EdgeData != nil {
		params["edge_data"] = a.EdgeData
	}
	return params
}

// ConsolidateEpisodicToWorking promotes important episodic memories into
// the working layer, the first hop of the episodic -> working -> semantic
// -> long-term consolidation flow.
//
// Zero-value fields take the defaults: MaxMemories=10, MinImportance=0.6.
type ConsolidateEpisodicToWorking struct {
	// MaxMemories bounds how many memories move per pass.
	MaxMemories int `json:"max_memories,omitempty"`

	// MinImportance is the promotion threshold in [0,1].
	MinImportance float64 `json:"min_importance,omitempty"`
}

func (a ConsolidateEpisodicToWorking) maxMemories() int {
	if a.MaxMemories <= 0 {
		return 10
	}
	return a.MaxMemories
}

func (a ConsolidateEpisodicToWorking) Type() ActionType {
	return TypeConsolidateEpisodicToWorking
}

// IsValidForState requires episodic memories to promote and headroom in
// the working layer (at most 100 resident memories).
func (a ConsolidateEpisodicToWorking) IsValidForState(ctx context.Context, s *state.System) bool {
	if s.Memory.Episodic.Count == 0 {
		return false
	}
	if s.Memory.Working.Count > 100 {
		return false
	}
	return true
}

// EstimateCost is pure data movement: ~5ms per promoted memory, no tokens.
func (a ConsolidateEpisodicToWorking) EstimateCost(ctx context.Context, s *state.System) CostEstimate {
	return CostEstimate{Tokens: 0, CostUSD: 0.0, LatencyMS: a.maxMemories() * 5}
}

func (a ConsolidateEpisodicToWorking) Parameters() map[string]any {
	minImportance := a.MinImportance
	if minImportance == 0 {
		minImportance = 0.6
	}
	return map[string]any{"max_memories": a.maxMemories(), "min_importance": minImportance}
}
