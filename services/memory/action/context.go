// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package action

import (
	"context"

	"github.com/AleutianAI/AleutianMemory/services/memory/state"
)

// PruneContext drops low-value items from the working context to stay
// inside budget. A local sort-and-filter pass, so it is nearly free.
//
// Zero-value fields take the defaults: Strategy="importance",
// TargetSize=2000, MinKeep=3.
type PruneContext struct {
	// Strategy selects the ranking: "importance", "recency", or
	// "relevance".
	Strategy string `json:"strategy,omitempty"`

	// TargetSize is the token count to prune down to.
	TargetSize int `json:"target_size,omitempty"`

	// MinKeep is the minimum number of items retained regardless of
	// target size.
	MinKeep int `json:"min_keep,omitempty"`
}

func (a PruneContext) Type() ActionType { return TypePruneContext }

// IsValidForState admits pruning only when there is context to prune.
// Deliberately ignores budget exhaustion: pruning is how an over-budget
// cycle recovers.
func (a PruneContext) IsValidForState(ctx context.Context, s *state.System) bool {
	return s.WorkingContext.TokenCount > 0
}

func (a PruneContext) EstimateCost(ctx context.Context, s *state.System) CostEstimate {
	return CostEstimate{Tokens: 0, CostUSD: 0.0, LatencyMS: 10}
}

func (a PruneContext) Parameters() map[string]any {
	strategy := a.Strategy
	if strategy == "" {
		strategy = "importance"
	}
	target := a.TargetSize
	if target == 0 {
		target = 2000
	}
	minKeep := a.MinKeep
	if minKeep == 0 {
		minKeep = 3
	}
	return map[string]any{"strategy": strategy, "target_size": target, "min_keep": minKeep}
}

// SummarizeContext compresses the working context while preserving the
// information relevant to the task (the information-bottleneck objective).
// Extractive summarization is a cheap local pass; abstractive requires a
// model call priced like CallModel at the configured compression ratio.
//
// Zero-value fields take the defaults: Method="extractive",
// CompressionRatio=0.5.
type SummarizeContext struct {
	// Method selects "extractive" or "abstractive" summarization.
	Method string `json:"method,omitempty"`

	// CompressionRatio is the target output/input token ratio in (0,1].
	CompressionRatio float64 `json:"compression_ratio,omitempty"`
}

func (a SummarizeContext) method() string {
	if a.Method == "" {
		return "extractive"
	}
	return a.Method
}

func (a SummarizeContext) ratio() float64 {
	if a.CompressionRatio == 0 {
		return 0.5
	}
	return a.CompressionRatio
}

func (a SummarizeContext) Type() ActionType { return TypeSummarizeContext }

func (a SummarizeContext) IsValidForState(ctx context.Context, s *state.System) bool {
	return !s.Budget.IsExhausted() && s.WorkingContext.TokenCount > 0
}

func (a SummarizeContext) EstimateCost(ctx context.Context, s *state.System) CostEstimate {
	if a.method() == "extractive" {
		return CostEstimate{Tokens: 0, CostUSD: 0.0, LatencyMS: 50}
	}

	// Abstractive: one model pass over the context, combined default-model
	// input+output rate applied to the total token volume.
	inputTokens := s.WorkingContext.TokenCount
	outputTokens := int(float64(inputTokens) * a.ratio())
	rate := DefaultModelRates()[DefaultModel]
	combinedPerMTok := rate.InputPerMTok + rate.OutputPerMTok

	return CostEstimate{
		Tokens:    inputTokens + outputTokens,
		CostUSD:   float64(inputTokens+outputTokens) / 1e6 * combinedPerMTok,
		LatencyMS: 2000 + outputTokens*50,
	}
}

func (a SummarizeContext) Parameters() map[string]any {
	return map[string]any{"method": a.method(), "compression_ratio": a.ratio()}
}
