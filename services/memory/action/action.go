// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package action formalizes the catalog of operations available to the
// memory decision loop. Each action answers two questions about a state
// it has not yet acted on: may I run (admission control), and what will
// I cost (token, dollar, and latency estimates).
//
// Actions are pure value objects. They never execute anything and never
// mutate state; execution belongs to the surrounding system. Admission
// checks and cost estimates are deterministic in the state, which makes
// candidate evaluation safe to parallelize.
package action

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianMemory/services/memory/state"
)

const tracerName = "memory.action"

// ActionType identifies an operation in the catalog.
type ActionType string

const (
	// Retrieval actions.
	TypeRetrieveEpisodic   ActionType = "retrieve_episodic"
	TypeRetrieveWorking    ActionType = "retrieve_working"
	TypeRetrieveSemantic   ActionType = "retrieve_semantic"
	TypeRetrieveLongTerm   ActionType = "retrieve_ltm"
	TypeRetrieveReflective ActionType = "retrieve_reflective"
	TypeRetrieveHybrid     ActionType = "retrieve_hybrid"

	// Memory management actions.
	TypeUpdateMemory                 ActionType = "update_memory"
	TypeConsolidateEpisodicToWorking ActionType = "consolidate_episodic_to_working"
	TypeConsolidateWorkingToSemantic ActionType = "consolidate_working_to_semantic"
	TypeConsolidateSemanticToLTM     ActionType = "consolidate_semantic_to_ltm"
	TypePruneContext                 ActionType = "prune_context"

	// Reflection actions.
	TypeGenerateReflection ActionType = "generate_reflection"
	TypeClusterMemories    ActionType = "cluster_memories"

	// Model actions.
	TypeCallModel            ActionType = "call_llm"
	TypeCallModelWithRouting ActionType = "call_llm_with_routing"

	// Graph actions.
	TypeExtractGraph  ActionType = "extract_graph"
	TypeTraverseGraph ActionType = "traverse_graph"
	TypeUpdateGraph   ActionType = "update_graph"

	// Context actions.
	TypeSummarizeContext ActionType = "summarize_context"
	TypeExpandContext    ActionType = "expand_context"
	TypeRerankContext    ActionType = "rerank_context"
)

// CostEstimate is the expected resource usage of one action in a given
// state: C(a, s) -> (tokens, dollars, milliseconds).
type CostEstimate struct {
	// Tokens is the expected token usage.
	Tokens int `json:"tokens"`

	// CostUSD is the expected dollar cost. Zero for local operations.
	CostUSD float64 `json:"cost_usd"`

	// LatencyMS is the expected wall-clock latency in milliseconds.
	LatencyMS int `json:"latency_ms"`
}

// Action is one operation in the catalog.
//
// Implementations must be deterministic: for the same state, IsValidForState
// and EstimateCost always return the same answers, with no side effects on
// the state.
//
// Thread Safety: Implementations are immutable value objects and safe for
// concurrent use.
type Action interface {
	// Type returns the action's catalog identifier.
	Type() ActionType

	// IsValidForState reports whether the action's preconditions hold in
	// the given state. A false answer is a routine admission decision,
	// not an error.
	IsValidForState(ctx context.Context, s *state.System) bool

	// EstimateCost returns the expected resource usage of executing the
	// action from the given state.
	EstimateCost(ctx context.Context, s *state.System) CostEstimate

	// Parameters returns the action's configuration for audit records.
	Parameters() map[string]any
}

// Record is the serialized audit form of a selected action. It is what the
// decision loop stores on the next state's LastAction and what execution
// logs reference.
type Record struct {
	// ID uniquely identifies this selection.
	ID string `json:"id"`

	// Type is the catalog identifier.
	Type ActionType `json:"action_type"`

	// Parameters is the action configuration at selection time.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Estimated is the cost estimate at selection time.
	Estimated CostEstimate `json:"estimated"`

	// CreatedAt is the selection timestamp.
	CreatedAt time.Time `json:"created_at"`

	// Reason explains why this action was chosen. Optional.
	Reason string `json:"reason,omitempty"`
}

// NewRecord captures an action selection for audit.
func NewRecord(a Action, estimate CostEstimate, reason string) Record {
	return Record{
		ID:         uuid.NewString(),
		Type:       a.Type(),
		Parameters: a.Parameters(),
		Estimated:  estimate,
		CreatedAt:  time.Now(),
		Reason:     reason,
	}
}

// AsMap serializes the record for state.System.LastAction.
func (r Record) AsMap() map[string]any {
	return map[string]any{
		"id":                   r.ID,
		"action_type":          string(r.Type),
		"parameters":           r.Parameters,
		"estimated_tokens":     r.Estimated.Tokens,
		"estimated_cost_usd":   r.Estimated.CostUSD,
		"estimated_latency_ms": r.Estimated.LatencyMS,
		"created_at":           r.CreatedAt.Format(time.RFC3339Nano),
		"reason":               r.Reason,
	}
}
