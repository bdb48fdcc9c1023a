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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeIDString(t *testing.T) {
	id := EdgeID{Source: "a", Relation: "depends_on", Target: "b"}
	assert.Equal(t, "a -[depends_on]-> b", id.String())
}

func TestAdjacencyMatrix(t *testing.T) {
	t.Run("empty graph returns nil", func(t *testing.T) {
		assert.Nil(t, NewGraph("t", "p").AdjacencyMatrix())
	})

	t.Run("rows follow lexical node order", func(t *testing.T) {
		g := seedGraph(0.7) // nodes a, b with a->b at 0.7

		adj := g.AdjacencyMatrix()
		require.NotNil(t, adj)
		rows, cols := adj.Dims()
		assert.Equal(t, 2, rows)
		assert.Equal(t, 2, cols)
		assert.Equal(t, 0.7, adj.At(0, 1))
		assert.Equal(t, 0.0, adj.At(1, 0))
	})
}

func TestGraphToMap(t *testing.T) {
	g := seedGraph(0.7)

	m := g.ToMap()
	assert.Equal(t, "tenant-1", m["tenant_id"])
	assert.Equal(t, 2, m["node_count"])
	assert.Equal(t, 1, m["edge_count"])

	edges, ok := m["edges"].(map[string]any)
	require.True(t, ok)
	_, ok = edges["a -[relates_to]-> b"]
	assert.True(t, ok, "edge keys are rendered composite strings")
}
