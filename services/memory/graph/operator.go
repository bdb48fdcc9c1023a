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
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/AleutianMemory/pkg/logging"
	"github.com/AleutianAI/AleutianMemory/services/memory/telemetry"
)

const tracerName = "memory.graph"

// ActionType identifies a graph transformation.
type ActionType string

const (
	ActionAddNode          ActionType = "add_node"
	ActionAddEdge          ActionType = "add_edge"
	ActionUpdateEdgeWeight ActionType = "update_edge_weight"
	ActionMergeNodes       ActionType = "merge_nodes"
	ActionPruneNode        ActionType = "prune_node"
	ActionPruneEdge        ActionType = "prune_edge"
)

// ErrUnknownActionType is returned by Apply for an action type outside the
// closed set above. This is a programming error on the caller's side, not a
// runtime condition, so it propagates instead of being absorbed.
var ErrUnknownActionType = errors.New("unknown graph action type")

// NodeData describes a node to create.
type NodeData struct {
	// ID is the node identifier. When empty, a default of the form
	// "node_<count>" is assigned.
	ID string `json:"id,omitempty"`

	// Label is the human-readable name. Required.
	Label string `json:"label"`

	// NodeType tags the kind of entity. Defaults to "entity".
	NodeType string `json:"node_type,omitempty"`

	// Properties holds open metadata.
	Properties map[string]any `json:"properties,omitempty"`

	// Importance is the initial importance. Nil means the default of 0.5.
	Importance *float64 `json:"importance,omitempty"`
}

// EdgeData describes an edge to create or strengthen.
type EdgeData struct {
	// SourceID and TargetID must reference existing nodes.
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`

	// Relation labels the relationship.
	Relation string `json:"relation"`

	// Weight is the initial weight. Nil means the default of 0.7.
	Weight *float64 `json:"weight,omitempty"`

	// Confidence is the extraction confidence. Nil means the default of 0.8.
	Confidence *float64 `json:"confidence,omitempty"`
}

// Observation carries new information extracted from a memory (entities,
// relations) into a transformation.
type Observation struct {
	// NodeData describes a node for add_node.
	NodeData *NodeData `json:"node_data,omitempty"`

	// EdgeData describes an edge for add_edge.
	EdgeData *EdgeData `json:"edge_data,omitempty"`
}

// Parameters configures a transformation. Node and edge data here act as a
// fallback when the observation carries none.
type Parameters struct {
	NodeData *NodeData `json:"node_data,omitempty"`
	EdgeData *EdgeData `json:"edge_data,omitempty"`

	// Node1ID and Node2ID select the nodes for merge_nodes. Node1 absorbs
	// node2.
	Node1ID string `json:"node1_id,omitempty"`
	Node2ID string `json:"node2_id,omitempty"`

	// NodeID selects the node for prune_node.
	NodeID string `json:"node_id,omitempty"`

	// EdgeID selects the edge for prune_edge.
	EdgeID *EdgeID `json:"edge_id,omitempty"`
}

// Config tunes the operator's maintenance behavior.
type Config struct {
	// EdgeHalfLifeDays is the half-life of the exponential edge weight decay.
	EdgeHalfLifeDays float64 `json:"edge_half_life_days" yaml:"edge_half_life_days"`

	// EdgePruneThreshold removes edges whose decayed weight falls below it.
	EdgePruneThreshold float64 `json:"edge_prune_threshold" yaml:"edge_prune_threshold"`

	// MergeSimilarityThreshold is the label similarity above which an
	// external entity-resolution pass proposes a merge. Stored for that
	// collaborator; dedupe inside this core is exact case-insensitive match.
	MergeSimilarityThreshold float64 `json:"merge_similarity_threshold" yaml:"merge_similarity_threshold"`
}

// DefaultConfig returns the standard operator tuning.
func DefaultConfig() Config {
	return Config{
		EdgeHalfLifeDays:         30.0,
		EdgePruneThreshold:       0.1,
		MergeSimilarityThreshold: 0.9,
	}
}

// Validate checks the configuration for nonsensical values.
func (c Config) Validate() error {
	if c.EdgeHalfLifeDays <= 0 {
		return fmt.Errorf("edge_half_life_days must be positive, got %v", c.EdgeHalfLifeDays)
	}
	if c.EdgePruneThreshold < 0 || c.EdgePruneThreshold > 1 {
		return fmt.Errorf("edge_prune_threshold must be in [0,1], got %v", c.EdgePruneThreshold)
	}
	if c.MergeSimilarityThreshold < 0 || c.MergeSimilarityThreshold > 1 {
		return fmt.Errorf("merge_similarity_threshold must be in [0,1], got %v", c.MergeSimilarityThreshold)
	}
	return nil
}

// Operator implements the deterministic graph transformation
// G' = T(G, observation, action) plus convergence analysis.
//
// Apply clones the input graph and mutates the clone, so calls on distinct
// graph instances are parallel-safe. The operator itself holds no graph
// state.
//
// Thread Safety: Safe for concurrent use across distinct graph instances.
// Concurrent transformations of the same logical graph must be serialized
// by the caller.
type Operator struct {
	config  Config
	log     *logging.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

// Option configures an Operator.
type Option func(*Operator)

// WithClock overrides the time source. Used by decay tests; production
// callers never need it.
func WithClock(now func() time.Time) Option {
	return func(o *Operator) { o.now = now }
}

// WithMetrics attaches pre-registered OTel instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Operator) { o.metrics = m }
}

// NewOperator creates a graph operator.
//
// Inputs:
//
//	config - Operator tuning. Use DefaultConfig() for standard behavior.
//	log - Structured logger. Required; use logging.Discard() to silence.
//	opts - Optional clock and metrics overrides.
//
// Outputs:
//
//	*Operator - Ready to use.
func NewOperator(config Config, log *logging.Logger, opts ...Option) *Operator {
	o := &Operator{
		config: config,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log.Info("graph_operator_initialized",
		"edge_half_life_days", config.EdgeHalfLifeDays,
		"edge_prune_threshold", config.EdgePruneThreshold,
		"merge_similarity_threshold", config.MergeSimilarityThreshold,
	)
	return o
}

// Apply executes one transformation and returns the resulting graph.
//
// The input graph is cloned first and never mutated; the returned graph
// shares no state with it. Recoverable conditions (missing node data,
// unknown endpoint IDs, absent merge targets) are logged and leave the
// clone unchanged. Only an unrecognized action type returns an error.
//
// Inputs:
//
//	ctx - Carries the tracing span context.
//	g - Current graph state. Never mutated.
//	action - One of the ActionType constants.
//	obs - New information driving the transformation. May be zero.
//	params - Action parameters. May be zero.
//
// Outputs:
//
//	*Graph - The transformed graph.
//	error - Non-nil only for an unknown action type.
func (o *Operator) Apply(ctx context.Context, g *Graph, action ActionType, obs Observation, params Parameters) (*Graph, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Operator.Apply")
	defer span.End()
	start := o.now()

	span.SetAttributes(
		attribute.String(telemetry.AttrGraphActionType, string(action)),
		attribute.String(telemetry.AttrTenantID, g.TenantID),
		attribute.String(telemetry.AttrProjectID, g.ProjectID),
		attribute.Int(telemetry.AttrGraphNodesBefore, len(g.Nodes)),
		attribute.Int(telemetry.AttrGraphEdgesBefore, len(g.Edges)),
	)

	o.log.Info("graph_transformation_started",
		"action_type", string(action),
		"nodes_before", len(g.Nodes),
		"edges_before", len(g.Edges),
	)

	next := g.Clone()

	switch action {
	case ActionAddNode:
		o.addNode(next, obs, params)
	case ActionAddEdge:
		o.addEdge(next, obs, params)
	case ActionUpdateEdgeWeight:
		o.decayEdgeWeights(ctx, next)
	case ActionMergeNodes:
		o.mergeNodes(next, params)
	case ActionPruneNode:
		o.pruneNode(next, params)
	case ActionPruneEdge:
		o.pruneEdge(next, params)
	default:
		err := fmt.Errorf("%w: %q", ErrUnknownActionType, action)
		telemetry.RecordError(span, err)
		span.SetAttributes(attribute.String(telemetry.AttrOutcomeLabel, "fail"))
		return nil, err
	}

	next.LastUpdated = o.now()

	nodesDelta := len(next.Nodes) - len(g.Nodes)
	edgesDelta := len(next.Edges) - len(g.Edges)

	span.SetAttributes(
		attribute.Int(telemetry.AttrGraphNodesAfter, len(next.Nodes)),
		attribute.Int(telemetry.AttrGraphEdgesAfter, len(next.Edges)),
		attribute.Int(telemetry.AttrGraphNodesDelta, nodesDelta),
		attribute.Int(telemetry.AttrGraphEdgesDelta, edgesDelta),
		attribute.String(telemetry.AttrOutcomeLabel, "success"),
	)
	telemetry.SetSpanOK(span)

	if o.metrics != nil {
		attrs := metric.WithAttributes(attribute.String(telemetry.AttrGraphActionType, string(action)))
		o.metrics.GraphTransformationsTotal.Add(ctx, 1, attrs)
		o.metrics.GraphTransformationDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}

	o.log.Info("graph_transformation_completed",
		"action_type", string(action),
		"nodes_after", len(next.Nodes),
		"edges_after", len(next.Edges),
		"nodes_delta", nodesDelta,
		"edges_delta", edgesDelta,
	)

	return next, nil
}

// addNode creates a new node unless one with the same label already exists
// (case-insensitive), which makes node addition idempotent per entity.
func (o *Operator) addNode(g *Graph, obs Observation, params Parameters) {
	data := obs.NodeData
	if data == nil {
		data = params.NodeData
	}
	if data == nil || data.Label == "" {
		o.log.Warn("add_node_missing_data")
		return
	}

	if existing := o.findDuplicateNode(g, data.Label); existing != nil {
		o.log.Info("node_already_exists", "node_id", existing.ID, "label", existing.Label)
		return
	}

	id := data.ID
	if id == "" {
		// Counter-based default, bumped past any caller-assigned IDs so a
		// generated ID never clobbers an existing node.
		for n := len(g.Nodes); ; n++ {
			id = fmt.Sprintf("node_%d", n)
			if g.Nodes[id] == nil {
				break
			}
		}
	}
	nodeType := data.NodeType
	if nodeType == "" {
		nodeType = "entity"
	}
	importance := 0.5
	if data.Importance != nil {
		importance = *data.Importance
	}

	now := o.now()
	g.Nodes[id] = &Node{
		ID:          id,
		Label:       data.Label,
		NodeType:    nodeType,
		Properties:  data.Properties,
		Importance:  importance,
		Centrality:  0.0, // recomputed externally
		CreatedAt:   now,
		LastUpdated: now,
	}

	o.log.Debug("node_added", "node_id", id, "label", data.Label)
}

// addEdge creates a new edge or strengthens an existing one. Repeated
// observations of the same fact raise the weight by 0.1 (capped at 1.0)
// and bump the evidence count.
func (o *Operator) addEdge(g *Graph, obs Observation, params Parameters) {
	data := obs.EdgeData
	if data == nil {
		data = params.EdgeData
	}
	if data == nil {
		o.log.Warn("add_edge_missing_data")
		return
	}

	if g.Node(data.SourceID) == nil || g.Node(data.TargetID) == nil {
		o.log.Warn("edge_nodes_not_found", "source", data.SourceID, "target", data.TargetID)
		return
	}

	id := EdgeID{Source: data.SourceID, Relation: data.Relation, Target: data.TargetID}
	now := o.now()

	if existing := g.Edge(id); existing != nil {
		existing.Weight = math.Min(1.0, existing.Weight+0.1)
		existing.EvidenceCount++
		existing.LastUpdated = now

		o.log.Debug("edge_strengthened",
			"edge_id", id.String(),
			"new_weight", existing.Weight,
			"evidence_count", existing.EvidenceCount,
		)
		return
	}

	weight := 0.7
	if data.Weight != nil {
		weight = *data.Weight
	}
	confidence := 0.8
	if data.Confidence != nil {
		confidence = *data.Confidence
	}

	g.Edges[id] = &Edge{
		ID:            id,
		Weight:        weight,
		Confidence:    confidence,
		EvidenceCount: 1,
		CreatedAt:     now,
		LastUpdated:   now,
	}

	o.log.Debug("edge_added", "edge_id", id.String(), "weight", weight)
}

// decayEdgeWeights applies exponential temporal decay to every edge:
//
//	w(t) = w(t0) * 0.5^(dt_days / half_life_days)
//
// so one half-life actually halves the weight. Edges whose decayed weight
// falls below the prune threshold are removed in the same pass.
func (o *Operator) decayEdgeWeights(ctx context.Context, g *Graph) {
	now := o.now()

	var pruned []EdgeID
	for id, edge := range g.Edges {
		deltaDays := now.Sub(edge.LastUpdated).Seconds() / 86400.0
		edge.Weight *= math.Pow(0.5, deltaDays/o.config.EdgeHalfLifeDays)

		if edge.Weight < o.config.EdgePruneThreshold {
			pruned = append(pruned, id)
		}
	}

	for _, id := range pruned {
		delete(g.Edges, id)
		o.log.Debug("edge_pruned_by_decay", "edge_id", id.String())
	}

	if o.metrics != nil && len(pruned) > 0 {
		o.metrics.GraphEdgesPruned.Add(ctx, int64(len(pruned)))
	}

	o.log.Info("edge_weights_updated",
		"edges_total", len(g.Edges),
		"edges_pruned", len(pruned),
	)
}

// mergeNodes performs entity resolution: node1 absorbs node2. Node2's
// properties overwrite node1's on key conflict, importance is maximized,
// and every edge touching node2 is redirected to node1 with its composite
// key recomputed. When a redirected key collides with an existing edge the
// two merge (weight capped at 1.0, evidence counts summed). Node2 is
// removed; afterwards no edge references it.
func (o *Operator) mergeNodes(g *Graph, params Parameters) {
	if params.Node1ID == "" || params.Node2ID == "" {
		o.log.Warn("merge_nodes_missing_ids")
		return
	}

	node1 := g.Node(params.Node1ID)
	node2 := g.Node(params.Node2ID)
	if node1 == nil || node2 == nil {
		o.log.Warn("merge_nodes_not_found", "node1", params.Node1ID, "node2", params.Node2ID)
		return
	}

	if node1.Properties == nil && len(node2.Properties) > 0 {
		node1.Properties = make(map[string]any, len(node2.Properties))
	}
	for k, v := range node2.Properties {
		node1.Properties[k] = v
	}
	node1.Importance = math.Max(node1.Importance, node2.Importance)
	node1.LastUpdated = o.now()

	delete(g.Nodes, params.Node2ID)

	var touching []EdgeID
	for id := range g.Edges {
		if id.Source == params.Node2ID || id.Target == params.Node2ID {
			touching = append(touching, id)
		}
	}

	for _, oldID := range touching {
		edge := g.Edges[oldID]

		newID := oldID
		if newID.Source == params.Node2ID {
			newID.Source = params.Node1ID
		}
		if newID.Target == params.Node2ID {
			newID.Target = params.Node1ID
		}

		delete(g.Edges, oldID)

		if existing := g.Edge(newID); existing != nil {
			existing.Weight = math.Min(1.0, existing.Weight+edge.Weight)
			existing.EvidenceCount += edge.EvidenceCount
			continue
		}

		edge.ID = newID
		g.Edges[newID] = edge
	}

	o.log.Info("nodes_merged",
		"node1", params.Node1ID,
		"node2", params.Node2ID,
		"edges_redirected", len(touching),
	)
}

// pruneNode removes a node and every edge incident to it, regardless of
// weight.
func (o *Operator) pruneNode(g *Graph, params Parameters) {
	if params.NodeID == "" || g.Node(params.NodeID) == nil {
		o.log.Warn("prune_node_not_found", "node_id", params.NodeID)
		return
	}

	delete(g.Nodes, params.NodeID)

	var incident []EdgeID
	for id := range g.Edges {
		if id.Source == params.NodeID || id.Target == params.NodeID {
			incident = append(incident, id)
		}
	}
	for _, id := range incident {
		delete(g.Edges, id)
	}

	o.log.Info("node_pruned",
		"node_id", params.NodeID,
		"edges_removed", len(incident),
	)
}

// pruneEdge removes a single edge by composite key.
func (o *Operator) pruneEdge(g *Graph, params Parameters) {
	if params.EdgeID == nil || g.Edge(*params.EdgeID) == nil {
		id := ""
		if params.EdgeID != nil {
			id = params.EdgeID.String()
		}
		o.log.Warn("prune_edge_not_found", "edge_id", id)
		return
	}

	delete(g.Edges, *params.EdgeID)
	o.log.Debug("edge_pruned", "edge_id", params.EdgeID.String())
}

// findDuplicateNode returns a node whose label matches case-insensitively,
// or nil. Embedding-based similarity matching belongs to the external
// entity-resolution collaborator.
func (o *Operator) findDuplicateNode(g *Graph, label string) *Node {
	lower := strings.ToLower(label)
	for _, node := range g.Nodes {
		if strings.ToLower(node.Label) == lower {
			return node
		}
	}
	return nil
}
