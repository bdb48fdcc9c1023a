// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reward

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianMemory/pkg/logging"
	"github.com/AleutianAI/AleutianMemory/services/memory/action"
	"github.com/AleutianAI/AleutianMemory/services/memory/state"
)

func newTestFunction(t *testing.T) *Function {
	t.Helper()
	return NewFunction(DefaultConfig(), logging.Discard())
}

// transition builds a before/after pair that consumed the given tokens and
// elapsed the given wall time.
func transition(tokensConsumed int, elapsed time.Duration) (*state.System, *state.System) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	before := state.New("tenant-1", "project-1", state.WithTimestamp(base))
	before.WorkingContext.TokenCount = 5000

	after := state.New("tenant-1", "project-1", state.WithTimestamp(base.Add(elapsed)))
	after.WorkingContext.TokenCount = 5000
	after.Budget.RemainingTokens -= tokensConsumed
	return before, after
}

func TestComputePenaltyArithmetic(t *testing.T) {
	fn := newTestFunction(t)
	before, after := transition(1000, 500*time.Millisecond)

	// Retrieval of 19 memories scores 0.6*0.7 + 0.4*(19/20) = 0.8 exactly.
	result := &ExecutionResult{MemoriesRetrieved: 19}
	got := fn.Compute(context.Background(), before, action.TypeRetrieveEpisodic, after, result)

	assert.InDelta(t, 0.8, got.QualityScore, 1e-9)
	assert.InDelta(t, 1000.0, got.TokenCost, 1e-9)
	assert.InDelta(t, 500.0, got.LatencyCost, 1e-9)
	assert.InDelta(t, 1.0, got.TokenPenalty, 1e-9)
	assert.InDelta(t, 5.0, got.LatencyPenalty, 1e-9)

	// 0.8 - 1.0 - 5.0: the total goes sharply negative and stays unclamped.
	assert.InDelta(t, -5.2, got.TotalReward, 1e-9)
}

func TestComputeFreeTransition(t *testing.T) {
	fn := newTestFunction(t)
	before, after := transition(0, 0)

	got := fn.Compute(context.Background(), before, action.TypeRetrieveEpisodic, after,
		&ExecutionResult{MemoriesRetrieved: 20})

	assert.Zero(t, got.TokenPenalty)
	assert.Zero(t, got.LatencyPenalty)
	assert.Equal(t, got.QualityReward, got.TotalReward)
}

func TestComputeRecordsHyperparameters(t *testing.T) {
	cfg := Config{Lambda: 0.002, Mu: 0.05, DiscountFactor: 0.9}
	fn := NewFunction(cfg, logging.Discard())
	before, after := transition(100, 10*time.Millisecond)

	got := fn.Compute(context.Background(), before, action.TypeUpdateGraph, after, nil)
	assert.Equal(t, 0.002, got.LambdaWeight)
	assert.Equal(t, 0.05, got.MuWeight)
	assert.InDelta(t, 0.002*100, got.TokenPenalty, 1e-9)
}

func TestRetrievalQuality(t *testing.T) {
	fn := newTestFunction(t)
	before, after := transition(0, 0)
	ctx := context.Background()

	t.Run("nil result is neutral", func(t *testing.T) {
		got := fn.Compute(ctx, before, action.TypeRetrieveSemantic, after, nil)
		assert.Equal(t, 0.5, got.QualityScore)
	})

	t.Run("empty retrieval scores zero", func(t *testing.T) {
		got := fn.Compute(ctx, before, action.TypeRetrieveSemantic, after, &ExecutionResult{})
		assert.Equal(t, 0.0, got.QualityScore)
	})

	t.Run("count score saturates at twenty", func(t *testing.T) {
		at20 := fn.Compute(ctx, before, action.TypeRetrieveSemantic, after,
			&ExecutionResult{MemoriesRetrieved: 20})
		at200 := fn.Compute(ctx, before, action.TypeRetrieveSemantic, after,
			&ExecutionResult{MemoriesRetrieved: 200})
		assert.Equal(t, at20.QualityScore, at200.QualityScore)
		assert.InDelta(t, 0.6*0.7+0.4, at20.QualityScore, 1e-9)
	})
}

func TestModelQuality(t *testing.T) {
	fn := newTestFunction(t)
	before, after := transition(0, 0)
	ctx := context.Background()

	tests := []struct {
		name string
		text string
		want float64
	}{
		{"empty output", "", 0.0},
		{"very short output", "ok", 0.4},
		{"reasonable output", strings.Repeat("a", 500), 0.6},
		{"long output", strings.Repeat("a", 3000), 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fn.Compute(ctx, before, action.TypeCallModel, after,
				&ExecutionResult{ModelText: tt.text})
			assert.Equal(t, tt.want, got.QualityScore)
		})
	}
}

func TestReflectionQuality(t *testing.T) {
	fn := newTestFunction(t)
	before, after := transition(0, 0)
	ctx := context.Background()

	t.Run("no reflections scores zero", func(t *testing.T) {
		got := fn.Compute(ctx, before, action.TypeGenerateReflection, after, &ExecutionResult{})
		assert.Equal(t, 0.0, got.QualityScore)
	})

	t.Run("averages scored reflections", func(t *testing.T) {
		result := &ExecutionResult{Reflections: []Reflection{
			{CompositeScore: 0.9, Scored: true},
			{CompositeScore: 0.5, Scored: true},
			{CompositeScore: 0.0, Scored: false}, // ignored
		}}
		got := fn.Compute(ctx, before, action.TypeGenerateReflection, after, result)
		assert.InDelta(t, 0.7, got.QualityScore, 1e-9)
	})

	t.Run("unscored reflections fall back", func(t *testing.T) {
		result := &ExecutionResult{Reflections: []Reflection{{Scored: false}}}
		got := fn.Compute(ctx, before, action.TypeGenerateReflection, after, result)
		assert.Equal(t, 0.6, got.QualityScore)
	})
}

func TestPruningQuality(t *testing.T) {
	fn := newTestFunction(t)
	ctx := context.Background()

	t.Run("saved nothing scores zero", func(t *testing.T) {
		before, after := transition(0, 0)
		got := fn.Compute(ctx, before, action.TypePruneContext, after, &ExecutionResult{})
		assert.Equal(t, 0.0, got.QualityScore)
	})

	t.Run("half the context is perfect compression", func(t *testing.T) {
		before, after := transition(0, 0) // 5000 context tokens before
		got := fn.Compute(ctx, before, action.TypePruneContext, after,
			&ExecutionResult{TokensSaved: 2500})
		assert.Equal(t, 1.0, got.QualityScore)
	})

	t.Run("modest compression scores proportionally", func(t *testing.T) {
		before, after := transition(0, 0)
		got := fn.Compute(ctx, before, action.TypePruneContext, after,
			&ExecutionResult{TokensSaved: 500})
		assert.InDelta(t, 0.2, got.QualityScore, 1e-9)
	})
}

func TestGraphUpdateQuality(t *testing.T) {
	fn := newTestFunction(t)
	ctx := context.Background()

	setCounts := func(s *state.System, nodes, edges int) {
		s.Graph.NodeCount = nodes
		s.Graph.EdgeCount = edges
	}

	t.Run("growth scores 0.7", func(t *testing.T) {
		before, after := transition(0, 0)
		setCounts(before, 10, 15)
		setCounts(after, 10, 16)
		got := fn.Compute(ctx, before, action.TypeUpdateGraph, after, nil)
		assert.Equal(t, 0.7, got.QualityScore)
	})

	t.Run("no change scores 0.5", func(t *testing.T) {
		before, after := transition(0, 0)
		setCounts(before, 10, 15)
		setCounts(after, 10, 15)
		got := fn.Compute(ctx, before, action.TypeUpdateGraph, after, nil)
		assert.Equal(t, 0.5, got.QualityScore)
	})

	t.Run("pruning scores 0.6", func(t *testing.T) {
		before, after := transition(0, 0)
		setCounts(before, 10, 15)
		setCounts(after, 9, 12)
		got := fn.Compute(ctx, before, action.TypeUpdateGraph, after, nil)
		assert.Equal(t, 0.6, got.QualityScore)
	})
}

func TestUnknownActionTypeIsNeutral(t *testing.T) {
	fn := newTestFunction(t)
	before, after := transition(0, 0)

	got := fn.Compute(context.Background(), before, action.TypeRerankContext, after, nil)
	assert.Equal(t, 0.5, got.QualityScore)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Lambda = -1
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.DiscountFactor = 1.5
	assert.Error(t, bad.Validate())
}
