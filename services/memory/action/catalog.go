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
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianMemory/pkg/logging"
	"github.com/AleutianAI/AleutianMemory/services/memory/state"
	"github.com/AleutianAI/AleutianMemory/services/memory/telemetry"
)

// Evaluation is the admission verdict and cost estimate for one candidate
// action in one state.
type Evaluation struct {
	// Action is the evaluated candidate.
	Action Action `json:"-"`

	// Type is the candidate's catalog identifier.
	Type ActionType `json:"action_type"`

	// Valid reports whether the candidate's preconditions held.
	Valid bool `json:"valid"`

	// Estimate is the cost estimate. Only computed for valid candidates.
	Estimate CostEstimate `json:"estimate"`
}

// Catalog evaluates candidate actions against a state for the decision
// loop.
//
// Thread Safety: Safe for concurrent use.
type Catalog struct {
	log     *logging.Logger
	metrics *telemetry.Metrics
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithMetrics attaches pre-registered OTel instruments.
func WithMetrics(m *telemetry.Metrics) CatalogOption {
	return func(c *Catalog) { c.metrics = m }
}

// NewCatalog creates an action catalog.
//
// Inputs:
//
//	log - Structured logger. Required; use logging.Discard() to silence.
//	opts - Optional metrics.
//
// Outputs:
//
//	*Catalog - Ready to use.
func NewCatalog(log *logging.Logger, opts ...CatalogOption) *Catalog {
	c := &Catalog{log: log}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultCandidates returns one zero-value instance of every standard
// catalog action, the candidate set a decision cycle starts from when the
// caller has no preference.
func DefaultCandidates() []Action {
	return []Action{
		RetrieveEpisodic{},
		RetrieveWorking{},
		RetrieveSemantic{},
		RetrieveLongTerm{},
		RetrieveReflective{},
		CallModel{},
		PruneContext{},
		SummarizeContext{},
		GenerateReflection{},
		UpdateGraph{},
		ConsolidateEpisodicToWorking{},
	}
}

// EvaluateCandidates runs admission control and cost estimation for every
// candidate against the given state. Candidates are independent, so they
// are evaluated in parallel; results come back in candidate order.
//
// Inputs:
//
//	ctx - Carries the tracing span context and cancellation.
//	s - The state to evaluate against. Only read.
//	candidates - The candidate actions. May be DefaultCandidates().
//
// Outputs:
//
//	[]Evaluation - One entry per candidate, in input order.
//	error - Non-nil only when the context is canceled mid-evaluation.
//
// Thread Safety: Safe for concurrent use.
func (c *Catalog) EvaluateCandidates(ctx context.Context, s *state.System, candidates []Action) ([]Evaluation, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Catalog.EvaluateCandidates")
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrTenantID, s.TenantID),
		attribute.String(telemetry.AttrProjectID, s.ProjectID),
		attribute.Int("action.candidate_count", len(candidates)),
	)

	results := make([]Evaluation, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	for i, candidate := range candidates {
		i, candidate := i, candidate
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			eval := Evaluation{
				Action: candidate,
				Type:   candidate.Type(),
				Valid:  candidate.IsValidForState(gctx, s),
			}
			if eval.Valid {
				eval.Estimate = candidate.EstimateCost(gctx, s)
			}
			results[i] = eval

			if c.metrics != nil {
				result := "invalid"
				if eval.Valid {
					result = "valid"
				}
				c.metrics.ActionValidationsTotal.Add(gctx, 1, metric.WithAttributes(
					attribute.String(telemetry.AttrActionType, string(eval.Type)),
					attribute.String(telemetry.AttrActionValidationResult, result),
				))
				if eval.Valid {
					c.metrics.ActionEstimatedTokens.Add(gctx, int64(eval.Estimate.Tokens), metric.WithAttributes(
						attribute.String(telemetry.AttrActionType, string(eval.Type)),
					))
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	valid := 0
	for _, eval := range results {
		if eval.Valid {
			valid++
		}
	}
	span.SetAttributes(attribute.Int("action.valid_count", valid))
	telemetry.SetSpanOK(span)

	c.log.Debug("candidates_evaluated",
		"tenant_id", s.TenantID,
		"candidate_count", len(candidates),
		"valid_count", valid,
	)

	return results, nil
}
