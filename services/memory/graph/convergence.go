// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"math"
	"math/cmplx"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"gonum.org/v1/gonum/mat"

	"github.com/AleutianAI/AleutianMemory/services/memory/telemetry"
)

// Churn thresholds and the spectral gap ceiling below which the graph is
// considered structurally stable.
const (
	nodeChurnThreshold   = 1.0
	edgeChurnThreshold   = 2.0
	spectralGapThreshold = 0.5
)

// Convergence reports whether a sequence of graph snapshots is
// structurally stabilizing.
type Convergence struct {
	// IsConverging is true when node churn, edge churn, and spectral gap
	// are all under their thresholds.
	IsConverging bool `json:"is_converging"`

	// Reason is a human-readable explanation of the verdict.
	Reason string `json:"reason"`

	// NodeChurn is the mean absolute node-count delta between consecutive
	// snapshots.
	NodeChurn float64 `json:"node_churn"`

	// EdgeChurn is the mean absolute edge-count delta between consecutive
	// snapshots.
	EdgeChurn float64 `json:"edge_churn"`

	// SpectralGap is |lambda1| - |lambda2| of the latest snapshot's
	// weighted adjacency matrix. Zero when undefined.
	SpectralGap float64 `json:"spectral_gap"`

	// NodeCount and EdgeCount describe the latest snapshot.
	NodeCount int `json:"node_count"`
	EdgeCount int `json:"edge_count"`

	// HistoryLength is the number of snapshots analyzed.
	HistoryLength int `json:"history_length"`
}

// AnalyzeConvergence decides whether the graph evolution process is
// stabilizing, from a chronologically ordered sequence of snapshots.
//
// Churn is the mean absolute change in node and edge counts between
// consecutive snapshots. The spectral gap |lambda1| - |lambda2| of the
// latest snapshot's weighted adjacency matrix measures structural
// coherence; it is computed only when the snapshot has more than one node
// and at least one edge, and an eigendecomposition failure degrades to a
// gap of zero with a warning rather than an error.
//
// Inputs:
//
//	ctx - Carries the tracing span context.
//	history - Graph snapshots, oldest first. Fewer than two snapshots
//	  yields a non-converging verdict with reason "insufficient_history".
//
// Outputs:
//
//	Convergence - The verdict with its supporting measurements.
//
// Thread Safety: Safe for concurrent use; the snapshots are only read.
func (o *Operator) AnalyzeConvergence(ctx context.Context, history []*Graph) Convergence {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Operator.AnalyzeConvergence")
	defer span.End()

	if len(history) < 2 {
		span.SetAttributes(attribute.Int(telemetry.AttrGraphHistoryLen, len(history)))
		telemetry.SetSpanOK(span)
		return Convergence{
			IsConverging:  false,
			Reason:        "insufficient_history",
			HistoryLength: len(history),
		}
	}

	nodeChurn := meanAbsDelta(history, (*Graph).NodeCount)
	edgeChurn := meanAbsDelta(history, (*Graph).EdgeCount)

	latest := history[len(history)-1]
	gap := o.spectralGap(latest)

	converging := nodeChurn < nodeChurnThreshold &&
		edgeChurn < edgeChurnThreshold &&
		gap < spectralGapThreshold

	reason := "structure_stabilizing"
	switch {
	case !converging && nodeChurn >= nodeChurnThreshold:
		reason = "node_churn_too_high"
	case !converging && edgeChurn >= edgeChurnThreshold:
		reason = "edge_churn_too_high"
	case !converging:
		reason = "spectral_gap_too_wide"
	}

	result := Convergence{
		IsConverging:  converging,
		Reason:        reason,
		NodeChurn:     nodeChurn,
		EdgeChurn:     edgeChurn,
		SpectralGap:   gap,
		NodeCount:     latest.NodeCount(),
		EdgeCount:     latest.EdgeCount(),
		HistoryLength: len(history),
	}

	span.SetAttributes(
		attribute.Float64(telemetry.AttrGraphNodeChurn, nodeChurn),
		attribute.Float64(telemetry.AttrGraphEdgeChurn, edgeChurn),
		attribute.Float64(telemetry.AttrGraphSpectralGap, gap),
		attribute.Bool(telemetry.AttrGraphConverging, converging),
		attribute.Int(telemetry.AttrGraphHistoryLen, len(history)),
	)
	telemetry.SetSpanOK(span)

	if o.metrics != nil {
		o.metrics.GraphConvergenceChecks.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool(telemetry.AttrGraphConverging, converging),
		))
	}

	o.log.Info("convergence_analyzed",
		"is_converging", converging,
		"reason", reason,
		"node_churn", nodeChurn,
		"edge_churn", edgeChurn,
		"spectral_gap", gap,
		"history_length", len(history),
	)

	return result
}

// spectralGap computes |lambda1| - |lambda2| of the graph's weighted
// adjacency matrix. Returns 0 when the gap is undefined (fewer than two
// nodes, no edges) or the eigendecomposition fails.
func (o *Operator) spectralGap(g *Graph) float64 {
	if g.NodeCount() < 2 || g.EdgeCount() == 0 {
		return 0.0
	}

	adj := g.AdjacencyMatrix()

	var eig mat.Eigen
	if !eig.Factorize(adj, mat.EigenNone) {
		o.log.Warn("spectral_gap_computation_failed",
			"node_count", g.NodeCount(),
			"edge_count", g.EdgeCount(),
		)
		return 0.0
	}

	values := eig.Values(nil)
	mags := make([]float64, len(values))
	for i, v := range values {
		mags[i] = cmplx.Abs(v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(mags)))

	if len(mags) < 2 {
		return 0.0
	}
	return mags[0] - mags[1]
}

// meanAbsDelta returns the mean absolute difference of a per-snapshot
// count across consecutive snapshots. Requires len(history) >= 2.
func meanAbsDelta(history []*Graph, count func(*Graph) int) float64 {
	sum := 0.0
	for i := 1; i < len(history); i++ {
		sum += math.Abs(float64(count(history[i]) - count(history[i-1])))
	}
	return sum / float64(len(history)-1)
}
