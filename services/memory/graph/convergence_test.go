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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// graphWithCounts builds a chain graph with the given number of nodes and
// min(edges, nodes-1) sequential edges.
func graphWithCounts(nodes, edges int) *Graph {
	g := NewGraph("tenant-1", "project-1")
	now := time.Now()
	for i := 0; i < nodes; i++ {
		id := fmt.Sprintf("n%03d", i)
		g.Nodes[id] = &Node{ID: id, Label: id, NodeType: "entity", Importance: 0.5, CreatedAt: now, LastUpdated: now}
	}
	for i := 0; i < edges && i < nodes-1; i++ {
		id := EdgeID{
			Source:   fmt.Sprintf("n%03d", i),
			Relation: "next",
			Target:   fmt.Sprintf("n%03d", i+1),
		}
		g.Edges[id] = &Edge{ID: id, Weight: 0.7, Confidence: 0.8, EvidenceCount: 1, CreatedAt: now, LastUpdated: now}
	}
	return g
}

func TestAnalyzeConvergenceInsufficientHistory(t *testing.T) {
	op := newTestOperator(t)

	for _, history := range [][]*Graph{nil, {graphWithCounts(3, 2)}} {
		result := op.AnalyzeConvergence(context.Background(), history)
		assert.False(t, result.IsConverging)
		assert.Equal(t, "insufficient_history", result.Reason)
		assert.Equal(t, len(history), result.HistoryLength)
	}
}

func TestAnalyzeConvergenceStableHistory(t *testing.T) {
	op := newTestOperator(t)

	// Ten identical snapshots: zero churn on both axes.
	history := make([]*Graph, 10)
	for i := range history {
		history[i] = graphWithCounts(5, 4)
	}

	result := op.AnalyzeConvergence(context.Background(), history)
	assert.True(t, result.IsConverging)
	assert.Equal(t, "structure_stabilizing", result.Reason)
	assert.Equal(t, 0.0, result.NodeChurn)
	assert.Equal(t, 0.0, result.EdgeChurn)
	assert.Equal(t, 5, result.NodeCount)
	assert.Equal(t, 4, result.EdgeCount)
	assert.Equal(t, 10, result.HistoryLength)
}

func TestAnalyzeConvergenceHighNodeChurn(t *testing.T) {
	op := newTestOperator(t)

	// Node count jumps by 5 every snapshot.
	history := []*Graph{
		graphWithCounts(5, 4),
		graphWithCounts(10, 9),
		graphWithCounts(15, 14),
	}

	result := op.AnalyzeConvergence(context.Background(), history)
	assert.False(t, result.IsConverging)
	assert.Equal(t, "node_churn_too_high", result.Reason)
	assert.Equal(t, 5.0, result.NodeChurn)
	assert.Equal(t, 5.0, result.EdgeChurn)
}

func TestAnalyzeConvergenceHighEdgeChurn(t *testing.T) {
	op := newTestOperator(t)

	// Node count stable, edge count oscillating by 3.
	history := []*Graph{
		graphWithCounts(10, 3),
		graphWithCounts(10, 6),
		graphWithCounts(10, 3),
	}

	result := op.AnalyzeConvergence(context.Background(), history)
	assert.False(t, result.IsConverging)
	assert.Equal(t, "edge_churn_too_high", result.Reason)
	assert.Equal(t, 0.0, result.NodeChurn)
	assert.Equal(t, 3.0, result.EdgeChurn)
}

func TestSpectralGapEdgeCases(t *testing.T) {
	op := newTestOperator(t)

	t.Run("single node has no gap", func(t *testing.T) {
		assert.Equal(t, 0.0, op.spectralGap(graphWithCounts(1, 0)))
	})

	t.Run("no edges has no gap", func(t *testing.T) {
		assert.Equal(t, 0.0, op.spectralGap(graphWithCounts(5, 0)))
	})

	t.Run("directed chain has zero gap", func(t *testing.T) {
		// A directed acyclic chain's adjacency matrix is nilpotent: every
		// eigenvalue is zero, so the gap between the top two is zero.
		g := graphWithCounts(4, 3)
		assert.InDelta(t, 0.0, op.spectralGap(g), 1e-9)
	})

	t.Run("weighted path top magnitudes are symmetric", func(t *testing.T) {
		// A symmetric weighted path has eigenvalues +r, -r, 0 with equal
		// top magnitudes, so the gap is zero.
		g := graphWithCounts(3, 0)
		add := func(src, dst string, w float64) {
			id := EdgeID{Source: src, Relation: "next", Target: dst}
			g.Edges[id] = &Edge{ID: id, Weight: w, Confidence: 0.8, EvidenceCount: 1}
		}
		add("n000", "n001", 0.9)
		add("n001", "n000", 0.9)
		add("n001", "n002", 0.2)
		add("n002", "n001", 0.2)

		// Eigenvalues of this weighted path are +/- sqrt(0.81+0.04) and 0.
		gap := op.spectralGap(g)
		assert.InDelta(t, 0.0, gap, 1e-9)
	})
}

func TestAnalyzeConvergenceReportsSpectralGap(t *testing.T) {
	op := newTestOperator(t)

	// A star graph: hub connected both ways to each leaf with weight 0.5.
	// Eigenvalue magnitudes are sqrt(k)*w, sqrt(k)*w, 0, ... so the gap of
	// the top two is zero and the structure counts as coherent.
	g := graphWithCounts(4, 0)
	for _, leaf := range []string{"n001", "n002", "n003"} {
		out := EdgeID{Source: "n000", Relation: "next", Target: leaf}
		in := EdgeID{Source: leaf, Relation: "next", Target: "n000"}
		g.Edges[out] = &Edge{ID: out, Weight: 0.5, Confidence: 0.8, EvidenceCount: 1}
		g.Edges[in] = &Edge{ID: in, Weight: 0.5, Confidence: 0.8, EvidenceCount: 1}
	}

	history := []*Graph{g.Clone(), g.Clone(), g}
	result := op.AnalyzeConvergence(context.Background(), history)
	require.True(t, result.IsConverging)
	assert.InDelta(t, 0.0, result.SpectralGap, 1e-9)
	assert.Equal(t, 4, result.NodeCount)
	assert.Equal(t, 6, result.EdgeCount)
}
