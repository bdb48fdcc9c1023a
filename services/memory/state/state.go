// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package state defines the value objects describing the memory system at an
// instant: the working context exposed to model calls, per-layer memory
// statistics, the remaining resource budget, and a knowledge graph summary.
//
// A System is constructed fresh per decision cycle by the caller and mutated
// only through explicit field updates. None of the query methods return
// errors; malformed values surface exclusively through IsValid.
package state

import (
	"time"

	"github.com/AleutianAI/AleutianMemory/pkg/logging"
)

// Layer identifies one of the five memory tiers.
type Layer string

const (
	LayerEpisodic   Layer = "episodic"
	LayerWorking    Layer = "working"
	LayerSemantic   Layer = "semantic"
	LayerLongTerm   Layer = "ltm"
	LayerReflective Layer = "reflective"
)

// Layers lists all memory tiers in consolidation order.
var Layers = []Layer{LayerEpisodic, LayerWorking, LayerSemantic, LayerLongTerm, LayerReflective}

// WorkingContext is the token-budgeted subset of memory exposed to a model
// call at a given decision cycle.
//
// ImportanceScores, when present, is expected to match Content in length;
// a mismatch is reported as a warning by System.IsValid but does not
// invalidate the state.
type WorkingContext struct {
	// Content is the ordered sequence of context items.
	Content []string `json:"content"`

	// TokenCount is the total context size in tokens. Must be >= 0.
	TokenCount int `json:"token_count"`

	// ImportanceScores holds per-item importance in [0,1]. Optional.
	ImportanceScores []float64 `json:"importance_scores,omitempty"`

	// SourceMemoryIDs identifies the memories that contributed each item. Optional.
	SourceMemoryIDs []string `json:"source_memory_ids,omitempty"`

	// Embeddings holds per-item vector representations. Optional.
	Embeddings [][]float64 `json:"-"`
}

// ToMap serializes the working context for audit logging.
func (w *WorkingContext) ToMap() map[string]any {
	avg := 0.0
	if len(w.ImportanceScores) > 0 {
		for _, s := range w.ImportanceScores {
			avg += s
		}
		avg /= float64(len(w.ImportanceScores))
	}
	return map[string]any{
		"content":           w.Content,
		"token_count":       w.TokenCount,
		"importance_scores": w.ImportanceScores,
		"memory_count":      len(w.Content),
		"avg_importance":    avg,
	}
}

// LayerState describes a single memory layer.
type LayerState struct {
	// Count is the number of memories in this layer. Must be >= 0.
	Count int `json:"count"`

	// AvgImportance is the mean importance score in [0,1].
	AvgImportance float64 `json:"avg_importance"`

	// Coverage is the layer utilization in [0,1].
	Coverage float64 `json:"coverage"`

	// AvgAgeHours is the mean memory age in hours.
	AvgAgeHours float64 `json:"avg_age_hours"`

	// LastConsolidated is the last consolidation timestamp. Zero means never.
	LastConsolidated time.Time `json:"last_consolidated,omitempty"`
}

// MemoryState aggregates all five memory layers.
type MemoryState struct {
	Episodic   LayerState `json:"episodic"`
	Working    LayerState `json:"working"`
	Semantic   LayerState `json:"semantic"`
	LongTerm   LayerState `json:"ltm"`
	Reflective LayerState `json:"reflective"`
}

// TotalCount returns the memory count summed across all layers.
func (m *MemoryState) TotalCount() int {
	return m.Episodic.Count + m.Working.Count + m.Semantic.Count +
		m.LongTerm.Count + m.Reflective.Count
}

// ByLayer returns the state for the given layer. Unknown layers return a
// zero LayerState.
func (m *MemoryState) ByLayer(layer Layer) LayerState {
	switch layer {
	case LayerEpisodic:
		return m.Episodic
	case LayerWorking:
		return m.Working
	case LayerSemantic:
		return m.Semantic
	case LayerLongTerm:
		return m.LongTerm
	case LayerReflective:
		return m.Reflective
	default:
		return LayerState{}
	}
}

// BudgetState tracks the remaining resource budget for cost-aware decision
// making.
type BudgetState struct {
	// RemainingTokens is the token budget left.
	RemainingTokens int `json:"remaining_tokens"`

	// RemainingCostUSD is the dollar budget left.
	RemainingCostUSD float64 `json:"remaining_cost_usd"`

	// LatencyBudgetMS is the latency budget left in milliseconds.
	LatencyBudgetMS int `json:"latency_budget_ms"`

	// CallsRemaining is the number of model calls left.
	CallsRemaining int `json:"calls_remaining"`
}

// DefaultBudget returns the standard per-cycle budget.
func DefaultBudget() BudgetState {
	return BudgetState{
		RemainingTokens:  100000,
		RemainingCostUSD: 10.0,
		LatencyBudgetMS:  30000,
		CallsRemaining:   100,
	}
}

// IsExhausted reports whether any budget dimension has run out.
func (b *BudgetState) IsExhausted() bool {
	return b.RemainingTokens <= 0 ||
		b.RemainingCostUSD <= 0.0 ||
		b.LatencyBudgetMS <= 0 ||
		b.CallsRemaining <= 0
}

// GraphState is a read-only summary of the knowledge graph. It is a
// projection of the graph operator's data, not an independent source of
// truth.
type GraphState struct {
	// NodeCount is the number of entities and concepts.
	NodeCount int `json:"node_count"`

	// EdgeCount is the number of relationships.
	EdgeCount int `json:"edge_count"`

	// AvgCentrality is the mean node centrality in [0,1].
	AvgCentrality float64 `json:"avg_centrality"`

	// ConnectedComponents is the number of disconnected subgraphs.
	ConnectedComponents int `json:"connected_components"`

	// LastUpdated is the last graph update timestamp. Zero means never.
	LastUpdated time.Time `json:"last_updated,omitempty"`
}

// Delta is the arithmetic difference between two system states
// (self minus other), used for transition analysis and realized-cost
// accounting in the reward function.
type Delta struct {
	// Tokens is the change in remaining token budget.
	Tokens int `json:"token_delta"`

	// CostUSD is the change in remaining dollar budget.
	CostUSD float64 `json:"cost_delta"`

	// ContextTokens is the change in working context size.
	ContextTokens int `json:"context_size_delta"`

	// GraphNodes is the change in graph node count.
	GraphNodes int `json:"graph_nodes_delta"`

	// GraphEdges is the change in graph edge count.
	GraphEdges int `json:"graph_edges_delta"`

	// MemoryCount is the change in total memory count across layers.
	MemoryCount int `json:"memory_count_delta"`

	// ElapsedMS is the elapsed wall time between the two timestamps.
	ElapsedMS float64 `json:"time_delta_ms"`
}

// System is the complete memory system state at a point in time.
//
// Lifecycle: constructed fresh per decision cycle by the caller, compared
// via Compare, and validated via IsValid. The action catalog and reward
// function read it; nothing in this core mutates it.
//
// Thread Safety: Not safe for concurrent mutation. Treat as
// immutable-by-convention once handed to the core.
type System struct {
	// TenantID identifies the tenant.
	TenantID string `json:"tenant_id"`

	// ProjectID identifies the project.
	ProjectID string `json:"project_id"`

	// SessionID optionally identifies the session.
	SessionID string `json:"session_id,omitempty"`

	// Timestamp is when this state was captured.
	Timestamp time.Time `json:"timestamp"`

	// WorkingContext is the current model-call context.
	WorkingContext WorkingContext `json:"working_context"`

	// Memory is the per-layer memory state.
	Memory MemoryState `json:"memory_state"`

	// Budget is the remaining resource budget.
	Budget BudgetState `json:"budget_state"`

	// Graph summarizes the knowledge graph.
	Graph GraphState `json:"graph_state"`

	// LastAction optionally records the action that led to this state,
	// in its serialized audit form.
	LastAction map[string]any `json:"last_action,omitempty"`

	log *logging.Logger
}

// Option configures a System at construction time.
type Option func(*System)

// WithLogger injects the structured logger used by IsValid warnings.
func WithLogger(log *logging.Logger) Option {
	return func(s *System) { s.log = log }
}

// WithSessionID sets the optional session identifier.
func WithSessionID(id string) Option {
	return func(s *System) { s.SessionID = id }
}

// WithTimestamp overrides the capture timestamp (defaults to time.Now).
func WithTimestamp(ts time.Time) Option {
	return func(s *System) { s.Timestamp = ts }
}

// New constructs a System for the given tenant and project with a default
// budget and the current time.
func New(tenantID, projectID string, opts ...Option) *System {
	s := &System{
		TenantID:  tenantID,
		ProjectID: projectID,
		Timestamp: time.Now(),
		Budget:    DefaultBudget(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compare computes the delta between this state and another (self minus
// other). Useful for understanding action effects and for reward
// calculation, which depends on realized state changes.
func (s *System) Compare(other *System) Delta {
	return Delta{
		Tokens:        s.Budget.RemainingTokens - other.Budget.RemainingTokens,
		CostUSD:       s.Budget.RemainingCostUSD - other.Budget.RemainingCostUSD,
		ContextTokens: s.WorkingContext.TokenCount - other.WorkingContext.TokenCount,
		GraphNodes:    s.Graph.NodeCount - other.Graph.NodeCount,
		GraphEdges:    s.Graph.EdgeCount - other.Graph.EdgeCount,
		MemoryCount:   s.Memory.TotalCount() - other.Memory.TotalCount(),
		ElapsedMS:     float64(s.Timestamp.Sub(other.Timestamp)) / float64(time.Millisecond),
	}
}

// IsValid validates state consistency. It returns false, never an error,
// when the budget is exhausted or a count went negative.
//
// A non-empty ImportanceScores slice whose length differs from Content is
// logged as a warning but keeps the state valid: scores may legitimately
// lag content while importance is still being computed.
func (s *System) IsValid() bool {
	if s.Budget.IsExhausted() {
		s.warn("state_validation_failed_budget_exhausted",
			"tenant_id", s.TenantID,
			"remaining_tokens", s.Budget.RemainingTokens,
			"remaining_cost_usd", s.Budget.RemainingCostUSD,
			"latency_budget_ms", s.Budget.LatencyBudgetMS,
			"calls_remaining", s.Budget.CallsRemaining,
		)
		return false
	}

	if s.WorkingContext.TokenCount < 0 {
		s.warn("state_validation_failed_negative_tokens",
			"tenant_id", s.TenantID,
			"token_count", s.WorkingContext.TokenCount,
		)
		return false
	}

	if len(s.WorkingContext.ImportanceScores) > 0 &&
		len(s.WorkingContext.ImportanceScores) != len(s.WorkingContext.Content) {
		s.warn("state_validation_warning_mismatched_importance_scores",
			"tenant_id", s.TenantID,
			"content_length", len(s.WorkingContext.Content),
			"scores_length", len(s.WorkingContext.ImportanceScores),
		)
	}

	for _, layer := range Layers {
		if s.Memory.ByLayer(layer).Count < 0 {
			s.warn("state_validation_failed_negative_memory_count",
				"tenant_id", s.TenantID,
				"layer", string(layer),
				"count", s.Memory.ByLayer(layer).Count,
			)
			return false
		}
	}

	return true
}

// ToMap serializes the state for audit logging.
func (s *System) ToMap() map[string]any {
	return map[string]any{
		"tenant_id":  s.TenantID,
		"project_id": s.ProjectID,
		"session_id": s.SessionID,
		"timestamp":  s.Timestamp.Format(time.RFC3339Nano),
		"working_context": s.WorkingContext.ToMap(),
		"memory_state": map[string]any{
			"episodic":    s.Memory.Episodic,
			"working":     s.Memory.Working,
			"semantic":    s.Memory.Semantic,
			"ltm":         s.Memory.LongTerm,
			"reflective":  s.Memory.Reflective,
			"total_count": s.Memory.TotalCount(),
		},
		"budget_state": map[string]any{
			"remaining_tokens":   s.Budget.RemainingTokens,
			"remaining_cost_usd": s.Budget.RemainingCostUSD,
			"latency_budget_ms":  s.Budget.LatencyBudgetMS,
			"calls_remaining":    s.Budget.CallsRemaining,
			"is_exhausted":       s.Budget.IsExhausted(),
		},
		"graph_state": map[string]any{
			"node_count":           s.Graph.NodeCount,
			"edge_count":           s.Graph.EdgeCount,
			"avg_centrality":       s.Graph.AvgCentrality,
			"connected_components": s.Graph.ConnectedComponents,
		},
		"last_action": s.LastAction,
	}
}

// LogState emits the full state through the injected logger under the
// given event name. No-op when no logger was injected.
func (s *System) LogState(event string) {
	if s.log == nil {
		return
	}
	s.log.Info(event,
		"tenant_id", s.TenantID,
		"project_id", s.ProjectID,
		"session_id", s.SessionID,
		"state", s.ToMap(),
	)
}

func (s *System) warn(msg string, args ...any) {
	if s.log == nil {
		return
	}
	s.log.Warn(msg, args...)
}
