// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config aggregates the tuning of the memory decision core into a
// single document that can be loaded from YAML, validated once, and fanned
// out to the graph operator, reward function, and metrics tracker.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianMemory/services/memory/action"
	"github.com/AleutianAI/AleutianMemory/services/memory/graph"
	"github.com/AleutianAI/AleutianMemory/services/memory/reward"
)

// CoreConfig is the complete tuning of the decision core.
type CoreConfig struct {
	// Graph tunes the knowledge graph operator.
	Graph graph.Config `json:"graph" yaml:"graph"`

	// Reward holds the reward hyperparameters.
	Reward reward.Config `json:"reward" yaml:"reward"`

	// MetricsWindowSize is the rolling window for tracker statistics.
	MetricsWindowSize int `json:"metrics_window_size" yaml:"metrics_window_size"`

	// Models overrides the built-in model pricing table. Empty means the
	// defaults.
	Models map[string]action.ModelRate `json:"models,omitempty" yaml:"models,omitempty"`
}

// Default returns the standard core tuning.
func Default() CoreConfig {
	return CoreConfig{
		Graph:             graph.DefaultConfig(),
		Reward:            reward.DefaultConfig(),
		MetricsWindowSize: 1000,
		Models:            action.DefaultModelRates(),
	}
}

// Validate checks every section.
func (c CoreConfig) Validate() error {
	if err := c.Graph.Validate(); err != nil {
		return fmt.Errorf("graph: %w", err)
	}
	if err := c.Reward.Validate(); err != nil {
		return fmt.Errorf("reward: %w", err)
	}
	if c.MetricsWindowSize <= 0 {
		return fmt.Errorf("metrics_window_size must be positive, got %d", c.MetricsWindowSize)
	}
	for model, rate := range c.Models {
		if rate.InputPerMTok < 0 || rate.OutputPerMTok < 0 {
			return fmt.Errorf("models[%s]: rates must be non-negative", model)
		}
	}
	return nil
}

// Parse decodes a YAML document over the defaults, so a partial document
// only overrides what it names.
func Parse(data []byte) (CoreConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CoreConfig{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return CoreConfig{}, err
	}
	return cfg, nil
}

// LoadFromFile reads and parses a YAML config file.
func LoadFromFile(path string) (CoreConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CoreConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}
