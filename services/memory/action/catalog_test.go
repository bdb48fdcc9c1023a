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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianMemory/pkg/logging"
)

func TestEvaluateCandidatesPreservesOrder(t *testing.T) {
	catalog := NewCatalog(logging.Discard())
	candidates := DefaultCandidates()

	results, err := catalog.EvaluateCandidates(context.Background(), richState(), candidates)
	require.NoError(t, err)
	require.Len(t, results, len(candidates))

	for i, eval := range results {
		assert.Equal(t, candidates[i].Type(), eval.Type)
	}
}

func TestEvaluateCandidatesRichState(t *testing.T) {
	catalog := NewCatalog(logging.Discard())

	results, err := catalog.EvaluateCandidates(context.Background(), richState(), DefaultCandidates())
	require.NoError(t, err)

	for _, eval := range results {
		assert.True(t, eval.Valid, string(eval.Type))
	}
}

func TestEvaluateCandidatesExhaustedBudget(t *testing.T) {
	catalog := NewCatalog(logging.Discard())

	results, err := catalog.EvaluateCandidates(context.Background(), exhaustedState(), DefaultCandidates())
	require.NoError(t, err)

	byType := make(map[ActionType]Evaluation, len(results))
	for _, eval := range results {
		byType[eval.Type] = eval
	}

	// Budget-gated actions are out.
	for _, at := range []ActionType{
		TypeRetrieveEpisodic, TypeRetrieveWorking, TypeRetrieveSemantic,
		TypeRetrieveLongTerm, TypeRetrieveReflective,
		TypeCallModel, TypeSummarizeContext, TypeGenerateReflection,
	} {
		assert.False(t, byType[at].Valid, string(at))
	}

	// Recovery and local maintenance actions stay available.
	assert.True(t, byType[TypePruneContext].Valid)
	assert.True(t, byType[TypeUpdateGraph].Valid)
	assert.True(t, byType[TypeConsolidateEpisodicToWorking].Valid)
}

func TestEvaluateCandidatesSkipsEstimatesForInvalid(t *testing.T) {
	catalog := NewCatalog(logging.Discard())
	s := richState()
	s.Memory.Episodic.Count = 0

	results, err := catalog.EvaluateCandidates(context.Background(), s, []Action{RetrieveEpisodic{}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Valid)
	assert.Zero(t, results[0].Estimate)
}

func TestEvaluateCandidatesCanceledContext(t *testing.T) {
	catalog := NewCatalog(logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := catalog.EvaluateCandidates(ctx, richState(), DefaultCandidates())
	assert.Error(t, err)
}
