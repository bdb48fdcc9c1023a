// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph implements the self-maintaining knowledge graph of the
// memory decision core: deterministic transformations over entities and
// relations (creation, strengthening, temporal decay, merging, pruning)
// and convergence analysis over graph snapshots.
//
// Transformations never mutate the caller's graph; Operator.Apply clones
// the input and returns a new graph. Applying transformations to distinct
// graph instances is therefore parallel-safe. Serializing concurrent
// updates to the same logical tenant/project graph is the caller's
// responsibility.
package graph

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

// EdgeID is the structured composite key of an edge. Repeated observations
// of the same (source, relation, target) fact map to the same EdgeID and
// strengthen one edge instead of duplicating it.
//
// A struct key cannot collide the way joined strings can when a label
// contains the join character, and it is directly usable as a map key.
type EdgeID struct {
	Source   string `json:"source_id"`
	Relation string `json:"relation"`
	Target   string `json:"target_id"`
}

// String renders the key for logs and serialized maps.
func (id EdgeID) String() string {
	return fmt.Sprintf("%s -[%s]-> %s", id.Source, id.Relation, id.Target)
}

// Node is an entity, concept, or event in the knowledge graph.
type Node struct {
	// ID is the unique node identifier.
	ID string `json:"id"`

	// Label is the human-readable name. Deduplication compares labels
	// case-insensitively.
	Label string `json:"label"`

	// NodeType tags the kind of entity (person, concept, event, ...).
	NodeType string `json:"node_type"`

	// Properties holds open metadata.
	Properties map[string]any `json:"properties,omitempty"`

	// Importance is the node importance in [0,1].
	Importance float64 `json:"importance"`

	// Centrality is the node centrality in [0,1]. Recomputed externally
	// from graph structure; this core only stores it.
	Centrality float64 `json:"centrality"`

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`

	// LastUpdated is the last mutation timestamp.
	LastUpdated time.Time `json:"last_updated"`
}

// clone returns a deep copy of the node.
func (n *Node) clone() *Node {
	cp := *n
	if n.Properties != nil {
		cp.Properties = make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			cp.Properties[k] = v
		}
	}
	return &cp
}

// Edge is a weighted, directed relationship between two nodes.
type Edge struct {
	// ID is the composite (source, relation, target) key. The endpoint
	// and relation fields live inside the key; there is no separate copy
	// to fall out of sync.
	ID EdgeID `json:"id"`

	// Weight is the edge strength in [0,1].
	Weight float64 `json:"weight"`

	// Confidence is the extraction confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// EvidenceCount is the number of observations supporting this edge. >= 1.
	EvidenceCount int `json:"evidence_count"`

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`

	// LastUpdated is the last strengthen/decay timestamp.
	LastUpdated time.Time `json:"last_updated"`
}

// clone returns a copy of the edge.
func (e *Edge) clone() *Edge {
	cp := *e
	return &cp
}

// Graph is a complete knowledge graph scoped to a tenant and project.
//
// Invariant: every edge's source and target reference nodes present in
// Nodes. Operator transformations preserve this.
type Graph struct {
	// Nodes maps node ID to node.
	Nodes map[string]*Node `json:"nodes"`

	// Edges maps composite edge key to edge.
	Edges map[EdgeID]*Edge `json:"-"`

	// TenantID identifies the tenant.
	TenantID string `json:"tenant_id"`

	// ProjectID identifies the project.
	ProjectID string `json:"project_id"`

	// CreatedAt is the graph creation timestamp.
	CreatedAt time.Time `json:"created_at"`

	// LastUpdated is the last transformation timestamp.
	LastUpdated time.Time `json:"last_updated"`
}

// NewGraph returns an empty graph for the given tenant and project.
func NewGraph(tenantID, projectID string) *Graph {
	now := time.Now()
	return &Graph{
		Nodes:       make(map[string]*Node),
		Edges:       make(map[EdgeID]*Edge),
		TenantID:    tenantID,
		ProjectID:   projectID,
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// Node returns the node with the given ID, or nil.
func (g *Graph) Node(id string) *Node {
	return g.Nodes[id]
}

// Edge returns the edge with the given composite key, or nil.
func (g *Graph) Edge(id EdgeID) *Edge {
	return g.Edges[id]
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.Nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.Edges) }

// Clone returns a deep copy of the graph. Operator transformations work on
// clones so the caller's graph is never aliased.
func (g *Graph) Clone() *Graph {
	cp := &Graph{
		Nodes:       make(map[string]*Node, len(g.Nodes)),
		Edges:       make(map[EdgeID]*Edge, len(g.Edges)),
		TenantID:    g.TenantID,
		ProjectID:   g.ProjectID,
		CreatedAt:   g.CreatedAt,
		LastUpdated: g.LastUpdated,
	}
	for id, node := range g.Nodes {
		cp.Nodes[id] = node.clone()
	}
	for id, edge := range g.Edges {
		cp.Edges[id] = edge.clone()
	}
	return cp
}

// sortedNodeIDs returns node IDs in lexical order, giving the adjacency
// matrix a deterministic layout.
func (g *Graph) sortedNodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AdjacencyMatrix returns the weighted adjacency matrix A where A[i,j] is
// the weight of the edge from node i to node j, with nodes ordered by ID.
// Returns nil for an empty graph.
func (g *Graph) AdjacencyMatrix() *mat.Dense {
	if len(g.Nodes) == 0 {
		return nil
	}

	ids := g.sortedNodeIDs()
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	adj := mat.NewDense(len(ids), len(ids), nil)
	for _, edge := range g.Edges {
		i, okSrc := index[edge.ID.Source]
		j, okDst := index[edge.ID.Target]
		if okSrc && okDst {
			adj.Set(i, j, edge.Weight)
		}
	}
	return adj
}

// ToMap serializes the graph for audit logging. Edge keys are rendered as
// strings since composite keys are not valid JSON object keys.
func (g *Graph) ToMap() map[string]any {
	nodes := make(map[string]any, len(g.Nodes))
	for id, node := range g.Nodes {
		nodes[id] = map[string]any{
			"id":         node.ID,
			"label":      node.Label,
			"node_type":  node.NodeType,
			"properties": node.Properties,
			"importance": node.Importance,
			"centrality": node.Centrality,
		}
	}
	edges := make(map[string]any, len(g.Edges))
	for id, edge := range g.Edges {
		edges[id.String()] = map[string]any{
			"source_id":      edge.ID.Source,
			"target_id":      edge.ID.Target,
			"relation":       edge.ID.Relation,
			"weight":         edge.Weight,
			"confidence":     edge.Confidence,
			"evidence_count": edge.EvidenceCount,
		}
	}
	return map[string]any{
		"nodes":      nodes,
		"edges":      edges,
		"tenant_id":  g.TenantID,
		"project_id": g.ProjectID,
		"node_count": len(g.Nodes),
		"edge_count": len(g.Edges),
	}
}
