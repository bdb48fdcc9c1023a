// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metrics tracks decision-loop performance over time: per-action
// reward statistics, information-bottleneck compression, and knowledge
// graph evolution. The Tracker doubles as a prometheus.Collector so a
// registry scrape exposes the same numbers the decision loop reads.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AleutianAI/AleutianMemory/pkg/logging"
	"github.com/AleutianAI/AleutianMemory/services/memory/action"
	"github.com/AleutianAI/AleutianMemory/services/memory/reward"
)

// DefaultWindowSize is the rolling-statistics window when none is given.
const DefaultWindowSize = 1000

// MDPSnapshot summarizes decision-process performance.
type MDPSnapshot struct {
	// AvgRewardPerAction is the windowed mean reward keyed by action type.
	AvgRewardPerAction map[string]float64 `json:"avg_reward_per_action"`

	// CumulativeReward sums every recorded transition's reward.
	CumulativeReward float64 `json:"cumulative_reward"`

	// TotalTransitions counts recorded transitions.
	TotalTransitions int `json:"total_transitions"`

	// TransitionsByAction counts transitions keyed by action type.
	TransitionsByAction map[string]int `json:"transitions_by_action"`

	// TotalTokensUsed, TotalCostUSD, and TotalLatencyMS accumulate the
	// realized transition costs.
	TotalTokensUsed int     `json:"total_tokens_used"`
	TotalCostUSD    float64 `json:"total_cost_usd"`
	TotalLatencyMS  int     `json:"total_latency_ms"`

	// AvgQualityScore is the windowed mean quality.
	AvgQualityScore float64 `json:"avg_quality_score"`

	// BudgetEfficiency is windowed quality per dollar spent.
	BudgetEfficiency float64 `json:"budget_efficiency"`
}

// BottleneckSnapshot summarizes information-bottleneck performance: how
// tightly the working context Z compresses full memory X while keeping
// what matters for the output Y.
type BottleneckSnapshot struct {
	// IZY estimates the mutual information between context and output.
	IZY float64 `json:"i_z_y"`

	// IZX estimates the mutual information between context and memory.
	IZX float64 `json:"i_z_x"`

	// CompressionRatio is |Z| / |X| in tokens.
	CompressionRatio float64 `json:"compression_ratio"`

	// ContextEfficiency is IZY per context token.
	ContextEfficiency float64 `json:"context_efficiency"`

	// AvgCompression and AvgEfficiency are windowed means.
	AvgCompression float64 `json:"avg_compression"`
	AvgEfficiency  float64 `json:"avg_efficiency"`
}

// GraphSnapshot summarizes knowledge graph evolution.
type GraphSnapshot struct {
	NodeCount   int     `json:"node_count"`
	EdgeCount   int     `json:"edge_count"`
	AvgDegree   float64 `json:"avg_degree"`
	SpectralGap float64 `json:"spectral_gap"`

	// IsConverging is a coarse heuristic: a narrow spectral gap on a
	// graph that has grown past trivial size.
	IsConverging bool `json:"is_converging"`
}

// Snapshot is a point-in-time copy of every tracked metric.
type Snapshot struct {
	MDP        MDPSnapshot        `json:"mdp"`
	Bottleneck BottleneckSnapshot `json:"information_bottleneck"`
	Graph      GraphSnapshot      `json:"graph"`
	WindowSize int                `json:"window_size"`
	Timestamp  time.Time          `json:"timestamp"`
}

// ActionStat ranks one action type by windowed reward.
type ActionStat struct {
	Type      string  `json:"action_type"`
	AvgReward float64 `json:"avg_reward"`
	Count     int     `json:"count"`
}

// Tracker accumulates decision-loop metrics.
//
// Thread Safety: Safe for concurrent use. All methods take the internal
// lock; Collect does too, so scrapes see consistent values.
type Tracker struct {
	mu sync.Mutex

	windowSize int
	log        *logging.Logger

	// MDP accumulation.
	cumulativeReward    float64
	totalTransitions    int
	transitionsByAction map[string]int
	totalTokensUsed     int
	totalCostUSD        float64
	totalLatencyMS      int

	rewardWindow  []float64
	qualityWindow []float64
	actionRewards map[string][]float64

	// Information bottleneck.
	bottleneck         BottleneckSnapshot
	compressionHistory []float64
	efficiencyHistory  []float64

	// Graph evolution.
	graph GraphSnapshot

	// Prometheus descriptors.
	descCumulativeReward  *prometheus.Desc
	descTotalTransitions  *prometheus.Desc
	descAvgQuality        *prometheus.Desc
	descTotalTokens       *prometheus.Desc
	descAvgRewardByAction *prometheus.Desc
	descCompressionRatio  *prometheus.Desc
	descContextEfficiency *prometheus.Desc
	descGraphNodes        *prometheus.Desc
	descGraphEdges        *prometheus.Desc
}

// NewTracker creates a metrics tracker.
//
// Inputs:
//
//	windowSize - Rolling window for averages. <=0 means DefaultWindowSize.
//	log - Structured logger. Required; use logging.Discard() to silence.
//
// Outputs:
//
//	*Tracker - Ready to use and register with a Prometheus registry.
func NewTracker(windowSize int, log *logging.Logger) *Tracker {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	t := &Tracker{
		windowSize:          windowSize,
		log:                 log,
		transitionsByAction: make(map[string]int),
		actionRewards:       make(map[string][]float64),

		descCumulativeReward: prometheus.NewDesc(
			"memory_cumulative_reward", "Total cumulative reward", nil, nil),
		descTotalTransitions: prometheus.NewDesc(
			"memory_transitions_total", "Total recorded transitions", nil, nil),
		descAvgQuality: prometheus.NewDesc(
			"memory_avg_quality_score", "Windowed mean quality score", nil, nil),
		descTotalTokens: prometheus.NewDesc(
			"memory_tokens_used_total", "Total tokens consumed by transitions", nil, nil),
		descAvgRewardByAction: prometheus.NewDesc(
			"memory_avg_reward", "Windowed mean reward by action type", []string{"action_type"}, nil),
		descCompressionRatio: prometheus.NewDesc(
			"memory_ib_compression_ratio", "Context/memory compression ratio", nil, nil),
		descContextEfficiency: prometheus.NewDesc(
			"memory_ib_context_efficiency", "Mutual information per context token", nil, nil),
		descGraphNodes: prometheus.NewDesc(
			"memory_graph_nodes", "Knowledge graph node count", nil, nil),
		descGraphEdges: prometheus.NewDesc(
			"memory_graph_edges", "Knowledge graph edge count", nil, nil),
	}

	log.Info("metrics_tracker_initialized", "window_size", windowSize)
	return t
}

// RecordTransition records one executed transition's reward breakdown.
func (t *Tracker) RecordTransition(actionType action.ActionType, components reward.Components) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := string(actionType)

	t.totalTransitions++
	t.cumulativeReward += components.TotalReward
	t.transitionsByAction[key]++

	t.totalTokensUsed += int(components.TokenCost)
	t.totalCostUSD += components.TokenCost * 1e-6
	t.totalLatencyMS += int(components.LatencyCost)

	t.rewardWindow = appendBounded(t.rewardWindow, components.TotalReward, t.windowSize)
	t.qualityWindow = appendBounded(t.qualityWindow, components.QualityScore, t.windowSize)
	t.actionRewards[key] = appendBounded(t.actionRewards[key], components.TotalReward, t.windowSize)

	t.log.Debug("transition_recorded",
		"action_type", key,
		"reward", components.TotalReward,
		"cumulative_reward", t.cumulativeReward,
		"total_transitions", t.totalTransitions,
	)
}

// RecordInformationBottleneck records one compression measurement.
//
// Inputs:
//
//	iZY - Mutual information between context and output.
//	iZX - Mutual information between context and full memory.
//	contextSize - Selected context size in tokens.
//	fullMemorySize - Full memory size in tokens.
func (t *Tracker) RecordInformationBottleneck(iZY, iZX float64, contextSize, fullMemorySize int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.bottleneck.IZY = iZY
	t.bottleneck.IZX = iZX

	t.bottleneck.CompressionRatio = 0.0
	if fullMemorySize > 0 {
		t.bottleneck.CompressionRatio = float64(contextSize) / float64(fullMemorySize)
	}
	t.bottleneck.ContextEfficiency = 0.0
	if contextSize > 0 {
		t.bottleneck.ContextEfficiency = iZY / float64(contextSize)
	}

	t.compressionHistory = appendBounded(t.compressionHistory, t.bottleneck.CompressionRatio, t.windowSize)
	t.efficiencyHistory = appendBounded(t.efficiencyHistory, t.bottleneck.ContextEfficiency, t.windowSize)

	t.log.Debug("ib_metrics_recorded",
		"i_z_y", iZY,
		"i_z_x", iZX,
		"compression_ratio", t.bottleneck.CompressionRatio,
		"context_efficiency", t.bottleneck.ContextEfficiency,
	)
}

// RecordGraphState records one graph evolution observation. Pass a
// negative avgDegree or spectralGap to mean "not measured"; the degree
// then falls back to 2E/N and the gap keeps its previous value.
func (t *Tracker) RecordGraphState(nodeCount, edgeCount int, avgDegree, spectralGap float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.graph.NodeCount = nodeCount
	t.graph.EdgeCount = edgeCount

	switch {
	case avgDegree >= 0:
		t.graph.AvgDegree = avgDegree
	case nodeCount > 0:
		t.graph.AvgDegree = float64(2*edgeCount) / float64(nodeCount)
	default:
		t.graph.AvgDegree = 0.0
	}

	gapMeasured := spectralGap >= 0
	if gapMeasured {
		t.graph.SpectralGap = spectralGap
	}
	t.graph.IsConverging = gapMeasured && spectralGap < 0.5 && nodeCount > 10

	t.log.Debug("graph_metrics_recorded",
		"node_count", nodeCount,
		"edge_count", edgeCount,
		"avg_degree", t.graph.AvgDegree,
		"is_converging", t.graph.IsConverging,
	)
}

// Snapshot returns a consistent copy of every tracked metric.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	avgByAction := make(map[string]float64, len(t.actionRewards))
	for key, rewards := range t.actionRewards {
		avgByAction[key] = mean(rewards)
	}
	byAction := make(map[string]int, len(t.transitionsByAction))
	for key, count := range t.transitionsByAction {
		byAction[key] = count
	}

	efficiency := 0.0
	if t.totalCostUSD > 0 {
		efficiency = sum(t.qualityWindow) / t.totalCostUSD
	}

	bottleneck := t.bottleneck
	bottleneck.AvgCompression = mean(t.compressionHistory)
	bottleneck.AvgEfficiency = mean(t.efficiencyHistory)

	return Snapshot{
		MDP: MDPSnapshot{
			AvgRewardPerAction:  avgByAction,
			CumulativeReward:    t.cumulativeReward,
			TotalTransitions:    t.totalTransitions,
			TransitionsByAction: byAction,
			TotalTokensUsed:     t.totalTokensUsed,
			TotalCostUSD:        t.totalCostUSD,
			TotalLatencyMS:      t.totalLatencyMS,
			AvgQualityScore:     mean(t.qualityWindow),
			BudgetEfficiency:    efficiency,
		},
		Bottleneck: bottleneck,
		Graph:      t.graph,
		WindowSize: t.windowSize,
		Timestamp:  time.Now(),
	}
}

// BestActions returns the top-k action types by windowed mean reward.
func (t *Tracker) BestActions(k int) []ActionStat {
	stats := t.actionStats()
	sort.Slice(stats, func(i, j int) bool { return stats[i].AvgReward > stats[j].AvgReward })
	if len(stats) > k {
		stats = stats[:k]
	}
	return stats
}

// WorstActions returns the bottom-k action types by windowed mean reward.
func (t *Tracker) WorstActions(k int) []ActionStat {
	stats := t.actionStats()
	sort.Slice(stats, func(i, j int) bool { return stats[i].AvgReward < stats[j].AvgReward })
	if len(stats) > k {
		stats = stats[:k]
	}
	return stats
}

func (t *Tracker) actionStats() []ActionStat {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := make([]ActionStat, 0, len(t.actionRewards))
	for key, rewards := range t.actionRewards {
		stats = append(stats, ActionStat{
			Type:      key,
			AvgReward: mean(rewards),
			Count:     t.transitionsByAction[key],
		})
	}
	return stats
}

// Reset clears all metrics, for tests and session boundaries.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cumulativeReward = 0
	t.totalTransitions = 0
	t.transitionsByAction = make(map[string]int)
	t.totalTokensUsed = 0
	t.totalCostUSD = 0
	t.totalLatencyMS = 0
	t.rewardWindow = nil
	t.qualityWindow = nil
	t.actionRewards = make(map[string][]float64)
	t.bottleneck = BottleneckSnapshot{}
	t.compressionHistory = nil
	t.efficiencyHistory = nil
	t.graph = GraphSnapshot{}

	t.log.Info("metrics_tracker_reset")
}

// Describe implements prometheus.Collector.
func (t *Tracker) Describe(ch chan<- *prometheus.Desc) {
	ch <- t.descCumulativeReward
	ch <- t.descTotalTransitions
	ch <- t.descAvgQuality
	ch <- t.descTotalTokens
	ch <- t.descAvgRewardByAction
	ch <- t.descCompressionRatio
	ch <- t.descContextEfficiency
	ch <- t.descGraphNodes
	ch <- t.descGraphEdges
}

// Collect implements prometheus.Collector.
func (t *Tracker) Collect(ch chan<- prometheus.Metric) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch <- prometheus.MustNewConstMetric(t.descCumulativeReward, prometheus.GaugeValue, t.cumulativeReward)
	ch <- prometheus.MustNewConstMetric(t.descTotalTransitions, prometheus.CounterValue, float64(t.totalTransitions))
	ch <- prometheus.MustNewConstMetric(t.descAvgQuality, prometheus.GaugeValue, mean(t.qualityWindow))
	ch <- prometheus.MustNewConstMetric(t.descTotalTokens, prometheus.CounterValue, float64(t.totalTokensUsed))
	for key, rewards := range t.actionRewards {
		ch <- prometheus.MustNewConstMetric(t.descAvgRewardByAction, prometheus.GaugeValue, mean(rewards), key)
	}
	ch <- prometheus.MustNewConstMetric(t.descCompressionRatio, prometheus.GaugeValue, t.bottleneck.CompressionRatio)
	ch <- prometheus.MustNewConstMetric(t.descContextEfficiency, prometheus.GaugeValue, t.bottleneck.ContextEfficiency)
	ch <- prometheus.MustNewConstMetric(t.descGraphNodes, prometheus.GaugeValue, float64(t.graph.NodeCount))
	ch <- prometheus.MustNewConstMetric(t.descGraphEdges, prometheus.GaugeValue, float64(t.graph.EdgeCount))
}

// appendBounded appends to a rolling window, dropping the oldest entries
// past the limit.
func appendBounded(window []float64, v float64, limit int) []float64 {
	window = append(window, v)
	if len(window) > limit {
		window = window[len(window)-limit:]
	}
	return window
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	return sum(values) / float64(len(values))
}
