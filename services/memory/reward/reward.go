// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reward scores state transitions for the decision loop:
//
//	R(s, a, s') = Quality(s') - lambda*|token delta| - mu*elapsed ms
//
// Quality is a per-action-type heuristic in [0,1]; the penalties come from
// the realized state delta, not from estimates. The composite reward is
// deliberately unclamped so that expensive low-quality transitions go
// sharply negative.
package reward

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/AleutianMemory/pkg/logging"
	"github.com/AleutianAI/AleutianMemory/services/memory/action"
	"github.com/AleutianAI/AleutianMemory/services/memory/state"
	"github.com/AleutianAI/AleutianMemory/services/memory/telemetry"
)

const tracerName = "memory.reward"

// Config holds the reward hyperparameters.
type Config struct {
	// Lambda weights the token penalty: 1000 tokens cost one quality
	// point at the default.
	Lambda float64 `json:"lambda" yaml:"lambda"`

	// Mu weights the latency penalty: 1ms costs 0.01 at the default.
	Mu float64 `json:"mu" yaml:"mu"`

	// DiscountFactor is gamma for cumulative-reward consumers. Unused by
	// single-transition scoring but carried so every consumer shares one
	// value.
	DiscountFactor float64 `json:"discount_factor" yaml:"discount_factor"`
}

// DefaultConfig returns the standard hyperparameters.
func DefaultConfig() Config {
	return Config{
		Lambda:         0.001,
		Mu:             0.01,
		DiscountFactor: 0.95,
	}
}

// Validate checks the hyperparameters for nonsensical values.
func (c Config) Validate() error {
	if c.Lambda < 0 {
		return fmt.Errorf("lambda must be non-negative, got %v", c.Lambda)
	}
	if c.Mu < 0 {
		return fmt.Errorf("mu must be non-negative, got %v", c.Mu)
	}
	if c.DiscountFactor < 0 || c.DiscountFactor > 1 {
		return fmt.Errorf("discount_factor must be in [0,1], got %v", c.DiscountFactor)
	}
	return nil
}

// Components is the interpretable breakdown of one transition's reward.
type Components struct {
	// QualityScore is the heuristic quality in [0,1].
	QualityScore float64 `json:"quality_score"`

	// TokenCost is the absolute token consumption of the transition.
	TokenCost float64 `json:"token_cost"`

	// LatencyCost is the elapsed wall time in milliseconds.
	LatencyCost float64 `json:"latency_cost"`

	// QualityReward, TokenPenalty, and LatencyPenalty are the weighted
	// terms that sum (with signs) to TotalReward.
	QualityReward  float64 `json:"quality_reward"`
	TokenPenalty   float64 `json:"token_penalty"`
	LatencyPenalty float64 `json:"latency_penalty"`

	// TotalReward is QualityReward - TokenPenalty - LatencyPenalty.
	// Unbounded below.
	TotalReward float64 `json:"total_reward"`

	// LambdaWeight and MuWeight record the hyperparameters used.
	LambdaWeight float64 `json:"lambda_weight"`
	MuWeight     float64 `json:"mu_weight"`
}

// AsMap serializes the breakdown for audit logging.
func (c Components) AsMap() map[string]any {
	return map[string]any{
		"quality_score":   c.QualityScore,
		"token_cost":      c.TokenCost,
		"latency_cost":    c.LatencyCost,
		"quality_reward":  c.QualityReward,
		"token_penalty":   c.TokenPenalty,
		"latency_penalty": c.LatencyPenalty,
		"total_reward":    c.TotalReward,
		"lambda_weight":   c.LambdaWeight,
		"mu_weight":       c.MuWeight,
	}
}

// Reflection carries the scoring of one generated reflection into quality
// evaluation.
type Reflection struct {
	// CompositeScore aggregates novelty, importance, utility, and
	// confidence in [0,1]. Meaningful only when Scored is true.
	CompositeScore float64 `json:"composite_score"`

	// Scored reports whether the reflection was scored at all.
	Scored bool `json:"scored"`
}

// ExecutionResult is the optional execution metadata attached to a
// transition. A nil result yields neutral quality for result-dependent
// action types.
type ExecutionResult struct {
	// MemoriesRetrieved is the retrieval hit count.
	MemoriesRetrieved int `json:"memories_retrieved,omitempty"`

	// ModelText is the model output, when the action called one.
	ModelText string `json:"model_text,omitempty"`

	// Reflections are the generated reflections with their scores.
	Reflections []Reflection `json:"reflections,omitempty"`

	// TokensSaved is the context reduction achieved by pruning.
	TokensSaved int `json:"tokens_saved,omitempty"`
}

// Function computes rewards for state-action-state transitions.
//
// Thread Safety: Safe for concurrent use.
type Function struct {
	config  Config
	log     *logging.Logger
	metrics *telemetry.Metrics
}

// Option configures a Function.
type Option func(*Function)

// WithMetrics attaches pre-registered OTel instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(f *Function) { f.metrics = m }
}

// NewFunction creates a reward function.
//
// Inputs:
//
//	config - Hyperparameters. Use DefaultConfig() for standard behavior.
//	log - Structured logger. Required; use logging.Discard() to silence.
//	opts - Optional metrics.
//
// Outputs:
//
//	*Function - Ready to use.
func NewFunction(config Config, log *logging.Logger, opts ...Option) *Function {
	f := &Function{config: config, log: log}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Compute scores one transition.
//
// The penalties come from the realized state delta: token cost is the
// absolute change in remaining token budget, latency is the elapsed time
// between the two state timestamps. Quality is a per-action-type heuristic
// over the after-state and the execution result, clamped to [0,1].
//
// Inputs:
//
//	ctx - Carries the tracing span context.
//	before - State before the action.
//	actionType - The executed action's catalog identifier.
//	after - State after the action.
//	result - Optional execution metadata. Nil yields neutral quality for
//	  result-dependent action types.
//
// Outputs:
//
//	Components - The reward breakdown.
func (f *Function) Compute(ctx context.Context, before *state.System, actionType action.ActionType, after *state.System, result *ExecutionResult) Components {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Function.Compute")
	defer span.End()

	quality := clamp01(f.evaluateQuality(before, actionType, after, result))

	delta := after.Compare(before)
	tokenCost := math.Abs(float64(delta.Tokens))
	latencyCost := delta.ElapsedMS

	components := Components{
		QualityScore:   quality,
		TokenCost:      tokenCost,
		LatencyCost:    latencyCost,
		QualityReward:  quality,
		TokenPenalty:   f.config.Lambda * tokenCost,
		LatencyPenalty: f.config.Mu * latencyCost,
		LambdaWeight:   f.config.Lambda,
		MuWeight:       f.config.Mu,
	}
	components.TotalReward = components.QualityReward - components.TokenPenalty - components.LatencyPenalty

	span.SetAttributes(
		attribute.String(telemetry.AttrActionType, string(actionType)),
		attribute.Float64(telemetry.AttrRewardQuality, quality),
		attribute.Float64(telemetry.AttrRewardTotal, components.TotalReward),
	)
	telemetry.SetSpanOK(span)

	if f.metrics != nil {
		attrs := metric.WithAttributes(attribute.String(telemetry.AttrActionType, string(actionType)))
		f.metrics.RewardTotal.Record(ctx, components.TotalReward, attrs)
		f.metrics.RewardQuality.Record(ctx, quality, attrs)
	}

	f.log.Debug("reward_computed",
		"action_type", string(actionType),
		"reward_components", components.AsMap(),
	)

	return components
}

// evaluateQuality dispatches to the per-action-type heuristic. These are
// placeholders for learned quality signals; production quality should come
// from user feedback or task-specific evaluation.
func (f *Function) evaluateQuality(before *state.System, actionType action.ActionType, after *state.System, result *ExecutionResult) float64 {
	switch actionType {
	case action.TypeRetrieveEpisodic,
		action.TypeRetrieveWorking,
		action.TypeRetrieveSemantic,
		action.TypeRetrieveLongTerm,
		action.TypeRetrieveReflective:
		return retrievalQuality(result)

	case action.TypeCallModel:
		return modelQuality(result)

	case action.TypeGenerateReflection:
		return reflectionQuality(result)

	case action.TypePruneContext:
		return pruningQuality(before, result)

	case action.TypeUpdateGraph:
		return graphUpdateQuality(before, after)

	default:
		return 0.5
	}
}

// retrievalQuality blends an assumed relevance of 0.7 with a count score
// that saturates at 20 memories. Retrieving nothing scores zero.
func retrievalQuality(result *ExecutionResult) float64 {
	if result == nil {
		return 0.5
	}
	if result.MemoriesRetrieved == 0 {
		return 0.0
	}

	countScore := math.Min(1.0, float64(result.MemoriesRetrieved)/20.0)
	const relevanceScore = 0.7 // TODO: use measured relevance once the retrieval layer reports it

	return 0.6*relevanceScore + 0.4*countScore
}

// modelQuality is a length heuristic: empty output scores zero, very short
// output is suspect, long output is probably detailed.
func modelQuality(result *ExecutionResult) float64 {
	if result == nil {
		return 0.5
	}

	switch n := len(result.ModelText); {
	case n == 0:
		return 0.0
	case n < 50:
		return 0.4
	case n > 2000:
		return 0.7
	default:
		return 0.6
	}
}

// reflectionQuality averages composite scores across scored reflections.
// Unscored reflections fall back to 0.6; an empty pass scores zero.
func reflectionQuality(result *ExecutionResult) float64 {
	if result == nil {
		return 0.5
	}
	if len(result.Reflections) == 0 {
		return 0.0
	}

	sum, scored := 0.0, 0
	for _, r := range result.Reflections {
		if r.Scored {
			sum += r.CompositeScore
			scored++
		}
	}
	if scored == 0 {
		return 0.6
	}
	return sum / float64(scored)
}

// pruningQuality rewards compression, saturating at 50% of the original
// context removed. Pruning nothing scores zero.
func pruningQuality(before *state.System, result *ExecutionResult) float64 {
	if result == nil {
		return 0.5
	}
	if result.TokensSaved == 0 {
		return 0.0
	}

	denom := before.WorkingContext.TokenCount
	if denom < 1 {
		denom = 1
	}
	ratio := float64(result.TokensSaved) / float64(denom)
	return math.Min(1.0, ratio*2)
}

// graphUpdateQuality scores structural change: growth 0.7, pruning 0.6
// (cleanup has value), no change 0.5.
func graphUpdateQuality(before, after *state.System) float64 {
	grew := after.Graph.NodeCount > before.Graph.NodeCount ||
		after.Graph.EdgeCount > before.Graph.EdgeCount
	unchanged := after.Graph.NodeCount == before.Graph.NodeCount &&
		after.Graph.EdgeCount == before.Graph.EdgeCount

	switch {
	case grew:
		return 0.7
	case unchanged:
		return 0.5
	default:
		return 0.6
	}
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}
