// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParsePartialOverridesDefaults(t *testing.T) {
	doc := []byte(`
graph:
  edge_half_life_days: 60
reward:
  lambda: 0.002
`)
	cfg, err := Parse(doc)
	require.NoError(t, err)

	assert.Equal(t, 60.0, cfg.Graph.EdgeHalfLifeDays)
	assert.Equal(t, 0.1, cfg.Graph.EdgePruneThreshold, "unnamed fields keep defaults")
	assert.Equal(t, 0.002, cfg.Reward.Lambda)
	assert.Equal(t, 0.01, cfg.Reward.Mu)
	assert.Equal(t, 1000, cfg.MetricsWindowSize)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"zero half life", "graph:\n  edge_half_life_days: 0\n"},
		{"negative lambda", "reward:\n  lambda: -1\n"},
		{"zero window", "metrics_window_size: 0\n"},
		{"negative model rate", "models:\n  gpt-4o:\n    input_per_mtok: -1\n"},
		{"malformed yaml", "graph: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "core.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics_window_size: 500\n"), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.MetricsWindowSize)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseModelOverride(t *testing.T) {
	doc := []byte(`
models:
  gpt-4o:
    input_per_mtok: 5.0
    output_per_mtok: 20.0
`)
	cfg, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.Models["gpt-4o"].InputPerMTok)
	// Models named only in the defaults survive a partial override.
	assert.Equal(t, 0.15, cfg.Models["gpt-4o-mini"].InputPerMTok)
}
