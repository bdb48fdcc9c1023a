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

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianMemory/services/memory/state"
	"github.com/AleutianAI/AleutianMemory/services/memory/telemetry"
)

// DefaultModel is assumed when a model action names none, and its rate is
// the fallback for unknown model names.
const DefaultModel = "gpt-4o-mini"

// ModelRate prices one model in dollars per million tokens.
type ModelRate struct {
	InputPerMTok  float64 `json:"input_per_mtok" yaml:"input_per_mtok"`
	OutputPerMTok float64 `json:"output_per_mtok" yaml:"output_per_mtok"`
}

// DefaultModelRates returns the built-in pricing table. Callers with
// negotiated pricing supply their own table via CallModel.Rates.
func DefaultModelRates() map[string]ModelRate {
	return map[string]ModelRate{
		"gpt-4o":                     {InputPerMTok: 2.50, OutputPerMTok: 10.00},
		"gpt-4o-mini":                {InputPerMTok: 0.15, OutputPerMTok: 0.60},
		"claude-3-5-sonnet-20241022": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
		"claude-3-5-haiku-20241022":  {InputPerMTok: 0.80, OutputPerMTok: 4.00},
	}
}

// rateFor resolves a model name against a rate table, falling back to the
// default model's pricing for unknown names.
func rateFor(rates map[string]ModelRate, model string) ModelRate {
	if rates == nil {
		rates = DefaultModelRates()
	}
	if rate, ok := rates[model]; ok {
		return rate
	}
	return DefaultModelRates()[DefaultModel]
}

// CallModel invokes a language model with the current working context.
// Typically the most expensive action in the catalog, so admission checks
// the estimated cost against the remaining budget, not just exhaustion.
//
// Zero-value fields take the defaults: Model=DefaultModel, MaxTokens=1000,
// Temperature=0.7, Rates=DefaultModelRates().
type CallModel struct {
	// Model names the model to call.
	Model string `json:"model,omitempty"`

	// MaxTokens bounds the output length.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature is the sampling temperature.
	Temperature float64 `json:"temperature,omitempty"`

	// SystemPrompt optionally overrides the system prompt.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Rates overrides the pricing table. Nil means DefaultModelRates().
	Rates map[string]ModelRate `json:"-"`
}

func (a CallModel) model() string {
	if a.Model == "" {
		return DefaultModel
	}
	return a.Model
}

func (a CallModel) maxTokens() int {
	if a.MaxTokens <= 0 {
		return 1000
	}
	return a.MaxTokens
}

func (a CallModel) Type() ActionType { return TypeCallModel }

// IsValidForState admits the call when budget remains, the working context
// is non-empty, and the estimated cost fits in both the dollar and token
// budgets.
func (a CallModel) IsValidForState(ctx context.Context, s *state.System) bool {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "CallModel.IsValidForState")
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrActionType, string(a.Type())),
		attribute.String(telemetry.AttrTenantID, s.TenantID),
		attribute.String(telemetry.AttrProjectID, s.ProjectID),
		attribute.String("action.model", a.model()),
	)

	if s.Budget.IsExhausted() {
		span.SetAttributes(
			attribute.String(telemetry.AttrActionValidationResult, "failed_budget_exhausted"),
			attribute.String(telemetry.AttrOutcomeLabel, "fail"),
		)
		return false
	}

	if s.WorkingContext.TokenCount == 0 {
		span.SetAttributes(
			attribute.String(telemetry.AttrActionValidationResult, "failed_no_context"),
			attribute.String(telemetry.AttrOutcomeLabel, "fail"),
		)
		return false
	}

	estimate := a.EstimateCost(ctx, s)
	span.SetAttributes(
		attribute.Float64(telemetry.AttrActionEstimatedCostUSD, estimate.CostUSD),
		attribute.Int(telemetry.AttrActionEstimatedTokens, estimate.Tokens),
		attribute.Float64("budget.remaining_cost_usd", s.Budget.RemainingCostUSD),
	)

	if estimate.CostUSD > s.Budget.RemainingCostUSD {
		span.SetAttributes(
			attribute.String(telemetry.AttrActionValidationResult, "failed_exceeds_cost_budget"),
			attribute.String(telemetry.AttrOutcomeLabel, "fail"),
		)
		return false
	}
	if estimate.Tokens > s.Budget.RemainingTokens {
		span.SetAttributes(
			attribute.String(telemetry.AttrActionValidationResult, "failed_exceeds_token_budget"),
			attribute.String(telemetry.AttrOutcomeLabel, "fail"),
		)
		return false
	}

	span.SetAttributes(
		attribute.String(telemetry.AttrActionValidationResult, "success"),
		attribute.String(telemetry.AttrOutcomeLabel, "success"),
	)
	return true
}

// EstimateCost prices the call as input tokens (the working context) plus
// up to MaxTokens of output at the model's per-million-token rates, with
// latency modeled as 1s fixed overhead plus ~50ms per output token.
func (a CallModel) EstimateCost(ctx context.Context, s *state.System) CostEstimate {
	_, span := telemetry.StartSpan(ctx, tracerName, "CallModel.EstimateCost")
	defer span.End()

	inputTokens := s.WorkingContext.TokenCount
	outputTokens := a.maxTokens()
	rate := rateFor(a.Rates, a.model())

	cost := float64(inputTokens)/1e6*rate.InputPerMTok +
		float64(outputTokens)/1e6*rate.OutputPerMTok

	estimate := CostEstimate{
		Tokens:    inputTokens + outputTokens,
		CostUSD:   cost,
		LatencyMS: 1000 + outputTokens*50,
	}

	span.SetAttributes(
		attribute.String(telemetry.AttrActionType, string(a.Type())),
		attribute.String("action.model", a.model()),
		attribute.Int(telemetry.AttrActionEstimatedTokens, estimate.Tokens),
		attribute.Float64(telemetry.AttrActionEstimatedCostUSD, estimate.CostUSD),
		attribute.Int(telemetry.AttrActionEstimatedLatency, estimate.LatencyMS),
	)
	return estimate
}

func (a CallModel) Parameters() map[string]any {
	temperature := a.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	params := map[string]any{
		"model":       a.model(),
		"max_tokens":  a.maxTokens(),
		"temperature": temperature,
	}
	if a.SystemPrompt != "" {
		params["system_prompt"] = a.SystemPrompt
	}
	return params
}
