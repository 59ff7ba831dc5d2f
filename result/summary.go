//
// Copyright (C) 2026 Scriptoria.  All rights reserved.
//
// paleobench is licensed under the Apache License Version 2.0.
//
//

package result

import (
	"strings"

	"github.com/scriptoria/paleobench/metric"
)

// summarizeRows reduces one scope of rows (one model, or one model/group
// pair) to a flat summary: aggregate statistics over every metrics block
// present plus resource counters over all rows. withCounts adds the
// evaluated/failed sample counters used at model scope.
func summarizeRows(rows []*Row, withCounts bool) Summary {
	var scores []metric.Scores
	failed := 0
	inputTokens, outputTokens, totalTokens := 0, 0, 0
	cost, latency := 0.0, 0.0
	for _, r := range rows {
		if r.Metrics != nil {
			scores = append(scores, *r.Metrics)
		}
		if strings.TrimSpace(r.Error) != "" {
			failed++
		}
		usage := r.ResponseMetadata
		inputTokens += usage.InputTokens
		outputTokens += usage.OutputTokens
		totalTokens += rowTotalTokens(usage)
		cost += usage.Cost
		latency += usage.LatencySeconds
	}
	summary := make(Summary)
	for k, v := range metric.Aggregate(scores) {
		summary[k] = v
	}
	if withCounts {
		summary["samples_evaluated"] = len(scores)
		summary["samples_failed"] = failed
	}
	summary["total_input_tokens"] = inputTokens
	summary["total_output_tokens"] = outputTokens
	summary["total_tokens"] = totalTokens
	summary["total_cost"] = round6(cost)
	summary["total_latency_seconds"] = round3(latency)
	return summary
}

// rowTotalTokens prefers the stored total and falls back to input+output
// for rows persisted before the total was recorded.
func rowTotalTokens(u Usage) int {
	if u.TotalTokens != 0 {
		return u.TotalTokens
	}
	return u.InputTokens + u.OutputTokens
}

func hasScores(rows []*Row) bool {
	for _, r := range rows {
		if r.Metrics != nil {
			return true
		}
	}
	return false
}

// modelSummariesFromRows recomputes model-level summaries by scanning every
// row. Every label in labels gets a summary even with no rows; labels found
// only on rows (models dropped from configuration) are still aggregated.
func modelSummariesFromRows(rows []*Row, labels map[string]struct{}) map[string]Summary {
	byModel := make(map[string][]*Row)
	for label := range labels {
		byModel[label] = nil
	}
	for _, r := range rows {
		if r.Model == "" {
			continue
		}
		byModel[r.Model] = append(byModel[r.Model], r)
	}
	summaries := make(map[string]Summary, len(byModel))
	for label, modelRows := range byModel {
		summaries[label] = summarizeRows(modelRows, true)
	}
	return summaries
}

// groupSummariesFromRows recomputes (model, group) summaries by scanning
// every row. Pairs without a single metrics block are omitted.
func groupSummariesFromRows(rows []*Row) map[string]map[string]Summary {
	byModelGroup := make(map[string]map[string][]*Row)
	for _, r := range rows {
		if r.Model == "" || r.Group == "" {
			continue
		}
		groups, ok := byModelGroup[r.Model]
		if !ok {
			groups = make(map[string][]*Row)
			byModelGroup[r.Model] = groups
		}
		groups[r.Group] = append(groups[r.Group], r)
	}
	summaries := make(map[string]map[string]Summary, len(byModelGroup))
	for model, groups := range byModelGroup {
		summaries[model] = make(map[string]Summary, len(groups))
		for group, groupRows := range groups {
			if !hasScores(groupRows) {
				continue
			}
			summaries[model][group] = summarizeRows(groupRows, false)
		}
	}
	return summaries
}

// documentLabels unions the labels echoed in the document configuration
// with the labels carried by rows.
func documentLabels(doc *Document) map[string]struct{} {
	labels := make(map[string]struct{})
	for _, m := range doc.Benchmark.Config.Models {
		if m.Label != "" {
			labels[m.Label] = struct{}{}
		}
	}
	for _, r := range doc.Results {
		if r.Model != "" {
			labels[r.Model] = struct{}{}
		}
	}
	return labels
}
