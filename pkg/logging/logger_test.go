// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"ERROR":   LevelError,
		"  info ": LevelInfo,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelString(t *testing.T) {
	if LevelDebug.String() != "debug" || LevelWarn.String() != "warn" {
		t.Error("level names do not round-trip")
	}
}

// memorySink captures records for inspection.
type memorySink struct {
	mu      sync.Mutex
	records []slog.Record
	closed  bool
}

func (s *memorySink) Write(_ context.Context, record slog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestSinkReceivesRecords(t *testing.T) {
	sink := &memorySink{}
	logger := New(Config{Level: LevelInfo, Quiet: true, Sink: sink})

	logger.Info("node_added", "node_id", "node_0")
	logger.Debug("filtered out")

	sink.mu.Lock()
	count := len(sink.records)
	sink.mu.Unlock()

	if count != 1 {
		t.Fatalf("expected 1 record in sink, got %d", count)
	}
	if sink.records[0].Message != "node_added" {
		t.Errorf("expected message node_added, got %s", sink.records[0].Message)
	}
}

func TestCloseClosesSink(t *testing.T) {
	sink := &memorySink{}
	logger := New(Config{Quiet: true, Sink: sink})

	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !sink.closed {
		t.Error("expected sink to be closed")
	}

	// Second close is a no-op.
	if err := logger.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestFileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Level: LevelInfo, Quiet: true, LogDir: dir, Service: "memory"})

	logger.Info("graph_transformation_completed", "nodes_after", 3)
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 log file, got %d", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "memory_") {
		t.Errorf("unexpected log file name %q", entries[0].Name())
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "graph_transformation_completed") {
		t.Error("log file missing expected event")
	}
	if !strings.Contains(string(data), `"service":"memory"`) {
		t.Error("log file missing service attribute")
	}
}

func TestWithAddsAttributes(t *testing.T) {
	sink := &memorySink{}
	logger := New(Config{Quiet: true, Sink: sink})

	child := logger.With("tenant_id", "acme")
	child.Info("reward_computed")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
}

func TestDiscardLoggerDoesNotPanic(t *testing.T) {
	logger := Discard()
	logger.Debug("a")
	logger.Info("b", "k", 1)
	logger.Warn("c")
	logger.Error("d")
	if err := logger.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestConcurrentLogging(t *testing.T) {
	sink := &memorySink{}
	logger := New(Config{Quiet: true, Sink: sink})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				logger.Info("transition_recorded", "n", j)
			}
		}()
	}
	wg.Wait()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.records) != 400 {
		t.Errorf("expected 400 records, got %d", len(sink.records))
	}
}
