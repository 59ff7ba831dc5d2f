//
// Copyright (C) 2026 Scriptoria.  All rights reserved.
//
// paleobench is licensed under the Apache License Version 2.0.
//
//

package result

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptoria/paleobench/metric"
)

func TestRecompute(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gt1.txt"), []byte("abcd"), 0o644))

	rescorable := &Row{
		Model: "m", Group: "g", Image: "i",
		GroundTruthFile: "gt1.txt",
		ModelOutput:     "abce",
		Metrics:         &metric.Scores{CER: 0.9}, // stale on purpose
	}
	missingGT := &Row{
		Model: "m", Group: "g", Image: "i2",
		GroundTruthFile: "gone.txt",
		ModelOutput:     "abce",
		Metrics:         &metric.Scores{CER: 0.5},
	}
	erred := &Row{
		Model: "m", Group: "g", Image: "i3",
		GroundTruthFile: "gt1.txt",
		Error:           "boom",
	}

	doc := docWithRows([]ModelEcho{{Label: "m"}}, rescorable, missingGT, erred)
	out, stats := Recompute(doc, dir)

	assert.Equal(t, 1, stats.Recomputed)
	assert.Equal(t, 2, stats.Skipped)

	require.Len(t, out.Results, 3)
	scored := out.Results[0]
	require.NotNil(t, scored.Metrics)
	assert.InDelta(t, 0.25, scored.Metrics.CER, 1e-9)
	assert.Equal(t, "abcd", scored.GroundTruthText)

	// Skipped rows lose metrics they can no longer justify.
	assert.Nil(t, out.Results[1].Metrics)
	assert.Nil(t, out.Results[2].Metrics)

	// Summaries reflect the rescored rows only.
	summary := out.ModelSummaries["m"]
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary["samples_evaluated"])
	assert.InDelta(t, 0.25, summary["cer_mean"].(float64), 1e-9)
}

func TestRecomputeDoesNotModifyInput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gt.txt"), []byte("abcd"), 0o644))

	row := &Row{
		Model: "m", Group: "g", Image: "i",
		GroundTruthFile: "gt.txt",
		ModelOutput:     "abce",
		Metrics:         &metric.Scores{CER: 0.9},
	}
	doc := docWithRows([]ModelEcho{{Label: "m"}}, row)

	out, _ := Recompute(doc, dir)

	assert.InDelta(t, 0.9, row.Metrics.CER, 1e-9)
	assert.NotSame(t, row, out.Results[0])
}

func TestRecomputeAbsoluteGroundTruthPath(t *testing.T) {
	dir := t.TempDir()
	gtPath := filepath.Join(dir, "gt.txt")
	require.NoError(t, os.WriteFile(gtPath, []byte("in principio"), 0o644))

	row := &Row{
		Model: "m", Group: "g", Image: "i",
		GroundTruthFile: gtPath,
		ModelOutput:     "in principio",
	}
	// baseDir deliberately wrong; the absolute path must win.
	out, stats := Recompute(docWithRows([]ModelEcho{{Label: "m"}}, row), "/nonexistent")

	assert.Equal(t, 1, stats.Recomputed)
	assert.Zero(t, out.Results[0].Metrics.CER)
}
