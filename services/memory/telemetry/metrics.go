// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined instruments for the memory decision core.
//
// All instruments use the "memory_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- Graph Metrics ---

	// GraphTransformationsTotal counts graph transformations by action type.
	GraphTransformationsTotal metric.Int64Counter

	// GraphTransformationDuration records graph transformation duration in seconds.
	GraphTransformationDuration metric.Float64Histogram

	// GraphEdgesPruned counts edges removed by the decay pass.
	GraphEdgesPruned metric.Int64Counter

	// GraphConvergenceChecks counts convergence analyses by outcome.
	GraphConvergenceChecks metric.Int64Counter

	// --- Action Metrics ---

	// ActionValidationsTotal counts admission checks by action type and result.
	ActionValidationsTotal metric.Int64Counter

	// ActionEstimatedTokens records per-action token cost estimates.
	ActionEstimatedTokens metric.Int64Counter

	// --- Reward Metrics ---

	// RewardTotal records the weighted reward of each transition.
	RewardTotal metric.Float64Histogram

	// RewardQuality records the quality component of each transition.
	RewardQuality metric.Float64Histogram
}

// NewMetrics registers all pre-defined instruments with the provided meter.
//
// Inputs:
//
//	meter - The OTel meter to use for instrument registration.
//
// Outputs:
//
//	*Metrics - The metrics instance with all instruments initialized.
//	error - Non-nil if instrument registration fails.
//
// Thread Safety: Safe for concurrent use after creation.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.GraphTransformationsTotal, err = meter.Int64Counter(
		"memory_graph_transformations_total",
		metric.WithDescription("Total knowledge graph transformations"),
		metric.WithUnit("{transformation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create graph_transformations_total: %w", err)
	}

	m.GraphTransformationDuration, err = meter.Float64Histogram(
		"memory_graph_transformation_duration_seconds",
		metric.WithDescription("Knowledge graph transformation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("create graph_transformation_duration: %w", err)
	}

	m.GraphEdgesPruned, err = meter.Int64Counter(
		"memory_graph_edges_pruned_total",
		metric.WithDescription("Edges removed by the decay pass"),
		metric.WithUnit("{edge}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create graph_edges_pruned_total: %w", err)
	}

	m.GraphConvergenceChecks, err = meter.Int64Counter(
		"memory_graph_convergence_checks_total",
		metric.WithDescription("Convergence analyses performed"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create graph_convergence_checks_total: %w", err)
	}

	m.ActionValidationsTotal, err = meter.Int64Counter(
		"memory_action_validations_total",
		metric.WithDescription("Action admission checks"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create action_validations_total: %w", err)
	}

	m.ActionEstimatedTokens, err = meter.Int64Counter(
		"memory_action_estimated_tokens_total",
		metric.WithDescription("Estimated token cost of evaluated actions"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create action_estimated_tokens_total: %w", err)
	}

	m.RewardTotal, err = meter.Float64Histogram(
		"memory_reward_total",
		metric.WithDescription("Weighted reward per transition"),
	)
	if err != nil {
		return nil, fmt.Errorf("create reward_total: %w", err)
	}

	m.RewardQuality, err = meter.Float64Histogram(
		"memory_reward_quality",
		metric.WithDescription("Quality component per transition"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0),
	)
	if err != nil {
		return nil, fmt.Errorf("create reward_quality: %w", err)
	}

	return m, nil
}
