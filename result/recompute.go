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
	"strings"

	"github.com/scriptoria/paleobench/metric"
)

// RecomputeStats reports how many rows a recompute pass rescored and how
// many it had to leave alone.
type RecomputeStats struct {
	Recomputed int
	Skipped    int
}

// Recompute rescores a persisted document against the current ground-truth
// files without re-invoking any model and returns a new snapshot; the input
// document is not modified. Rows with a recorded error, empty output, or a
// missing/unreadable ground-truth file lose their metrics and count as
// skipped; every other row gets freshly computed metrics and an updated
// reference text. Both summary maps are then recomputed over all rows.
//
// Relative ground-truth paths resolve against baseDir, normally the config
// file's directory.
func Recompute(doc *Document, baseDir string) (*Document, RecomputeStats) {
	out := &Document{Benchmark: doc.Benchmark}
	out.Results = make([]*Row, 0, len(doc.Results))

	var stats RecomputeStats
	for _, original := range doc.Results {
		row := original.clone()
		out.Results = append(out.Results, row)

		if !recomputeRow(row, baseDir) {
			// Dropping metrics that were present is a visible change; rows
			// that already carried none keep their stored bytes.
			if row.Metrics != nil {
				row.Metrics = nil
				row.markUpdated()
			}
			stats.Skipped++
			continue
		}
		stats.Recomputed++
	}

	out.ModelSummaries = modelSummariesFromRows(out.Results, documentLabels(out))
	out.GroupSummaries = groupSummariesFromRows(out.Results)
	return out, stats
}

// recomputeRow rescores one row in place. It reports false when the row
// must be skipped.
func recomputeRow(row *Row, baseDir string) bool {
	if strings.TrimSpace(row.Error) != "" {
		return false
	}
	if strings.TrimSpace(row.ModelOutput) == "" {
		return false
	}
	gtPath := strings.TrimSpace(row.GroundTruthFile)
	if gtPath == "" {
		return false
	}
	if !filepath.IsAbs(gtPath) {
		gtPath = filepath.Join(baseDir, gtPath)
	}
	groundTruth, err := os.ReadFile(gtPath)
	if err != nil {
		return false
	}
	scores := metric.Compute(string(groundTruth), row.ModelOutput)
	row.GroundTruthText = metric.Normalize(string(groundTruth))
	row.Metrics = &scores
	row.markUpdated()
	return true
}
