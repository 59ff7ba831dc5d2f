//
// Copyright (C) 2026 Scriptoria.  All rights reserved.
//
// paleobench is licensed under the Apache License Version 2.0.
//
//

package result

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptoria/paleobench/config"
	"github.com/scriptoria/paleobench/metric"
)

func scoredRow(model, group, image, gt string, cer float64) *Row {
	return &Row{
		Model:           model,
		Group:           group,
		Image:           image,
		GroundTruthFile: gt,
		ModelOutput:     "transcription",
		Metrics:         &metric.Scores{CER: cer, WER: cer},
		ResponseMetadata: Usage{
			InputTokens:    100,
			OutputTokens:   50,
			TotalTokens:    150,
			Cost:           0.001,
			LatencySeconds: 1.5,
		},
	}
}

func TestRowKey(t *testing.T) {
	row := scoredRow("m", "g", "https://x/info.json", "gt.txt", 0)
	key, ok := row.Key()
	require.True(t, ok)
	assert.Equal(t, MakeKey("m", "g", "https://x/info.json", "", "gt.txt"), key)

	// Label participates in identity.
	row.Label = "fol. 1r"
	labeled, ok := row.Key()
	require.True(t, ok)
	assert.NotEqual(t, key, labeled)
}

func TestRowKeyPassthrough(t *testing.T) {
	for _, row := range []*Row{
		{Group: "g", Image: "i", GroundTruthFile: "gt"},
		{Model: "m", Image: "i", GroundTruthFile: "gt"},
		{Model: "m", Group: "g", GroundTruthFile: "gt"},
		{Model: "m", Group: "g", Image: "i"},
	} {
		_, ok := row.Key()
		assert.False(t, ok)
	}
}

func TestRowPreservesUnknownFields(t *testing.T) {
	stored := `{"group":"g","model":"m","image":"i","ground_truth_file":"gt","model_output":"out","custom_annotation":"keep me"}`
	var row Row
	require.NoError(t, json.Unmarshal([]byte(stored), &row))
	assert.Equal(t, "m", row.Model)

	// Untouched rows re-emit their original bytes, unknown fields included.
	out, err := json.Marshal(&row)
	require.NoError(t, err)
	assert.JSONEq(t, stored, string(out))

	// Updated rows serialize their current fields; the unknown field is gone
	// but the known fields reflect the update.
	row.ModelOutput = "revised"
	row.markUpdated()
	out, err = json.Marshal(&row)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "custom_annotation")
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "revised", decoded["model_output"])
}

func testConfig() *config.Config {
	return &config.Config{
		Name:           "bench",
		MaxConcurrency: 2,
		Prompts:        config.Prompts{System: "sys", User: "usr"},
		Models: []*config.Model{
			{ID: "id-a", Label: "model-a"},
			{ID: "id-b", Label: "model-b"},
		},
		Groups: []*config.Group{
			{Name: "g1", Samples: []*config.Sample{{ImageURL: "https://x/1/info.json", GroundTruth: "gt1.txt"}}},
			{Name: "g2", Samples: []*config.Sample{{ImageURL: "https://x/2/info.json", GroundTruth: "gt2.txt"}}},
		},
	}
}

func TestRecomputeSummaries(t *testing.T) {
	state := NewRunState(testConfig())
	state.Outcomes = []*Row{
		scoredRow("model-a", "g1", "https://x/1/info.json", "gt1.txt", 0.1),
		scoredRow("model-a", "g2", "https://x/2/info.json", "gt2.txt", 0.3),
		{Model: "model-b", Group: "g1", Image: "https://x/1/info.json",
			GroundTruthFile: "gt1.txt", Error: "boom"},
	}
	state.RecomputeSummaries()

	a := state.ModelSummaries["model-a"]
	require.NotNil(t, a)
	assert.Equal(t, 2, a["samples_evaluated"])
	assert.Equal(t, 0, a["samples_failed"])
	assert.InDelta(t, 0.2, a["cer_mean"].(float64), 1e-9)
	assert.Equal(t, 200, a["total_input_tokens"])
	assert.Equal(t, 300, a["total_tokens"])
	assert.InDelta(t, 0.002, a["total_cost"].(float64), 1e-9)
	assert.InDelta(t, 3.0, a["total_latency_seconds"].(float64), 1e-9)

	b := state.ModelSummaries["model-b"]
	require.NotNil(t, b)
	assert.Equal(t, 0, b["samples_evaluated"])
	assert.Equal(t, 1, b["samples_failed"])

	// Group summaries exist only where at least one row carries metrics.
	assert.Contains(t, state.GroupSummaries["model-a"], "g1")
	assert.Contains(t, state.GroupSummaries["model-a"], "g2")
	assert.Empty(t, state.GroupSummaries["model-b"])
}

func TestRowTotalTokensFallback(t *testing.T) {
	assert.Equal(t, 150, rowTotalTokens(Usage{InputTokens: 100, OutputTokens: 50}))
	assert.Equal(t, 160, rowTotalTokens(Usage{InputTokens: 100, OutputTokens: 50, TotalTokens: 160}))
}

func TestBuildDocument(t *testing.T) {
	cfg := testConfig()
	state := NewRunState(cfg)
	state.Timestamp = time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	state.Duration = 12345 * time.Millisecond
	state.Outcomes = []*Row{scoredRow("model-a", "g1", "https://x/1/info.json", "gt1.txt", 0.1)}
	state.RecomputeSummaries()

	doc := BuildDocument(state)
	assert.Equal(t, "bench", doc.Benchmark.Name)
	assert.Equal(t, "2026-08-23T12:00:00Z", doc.Benchmark.Timestamp)
	assert.Equal(t, 12.345, doc.Benchmark.TotalDurationSeconds)
	assert.Equal(t, 2, doc.Benchmark.Config.SampleCount)
	require.Len(t, doc.Benchmark.Config.Models, 2)
	assert.Equal(t, "model-a", doc.Benchmark.Config.Models[0].Label)
	require.Len(t, doc.Benchmark.Config.Groups, 2)
	assert.Equal(t, 1, doc.Benchmark.Config.Groups[0].SampleCount)
	assert.Len(t, doc.Results, 1)
	assert.Contains(t, doc.ModelSummaries, "model-a")
}
