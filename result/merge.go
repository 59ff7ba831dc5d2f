//
// Copyright (C) 2026 Scriptoria.  All rights reserved.
//
// paleobench is licensed under the Apache License Version 2.0.
//
//

package result

// Merge overlays a freshly produced document onto a previously persisted
// one and returns the merged snapshot. Neither input is modified.
//
// Rows merge by identity key: a new row replaces the existing row with the
// same key in place, a new row without a match is appended, and rows that
// cannot yield a key (malformed or legacy data) pass through verbatim ahead
// of the keyed rows. The model roster is the new run's models extended with
// labels only the existing document knows, and both summary maps are
// recomputed from the merged row set. Merging the same new document twice
// therefore yields the same row set as merging it once.
func Merge(newDoc, existing *Document) *Document {
	merged := &Document{Benchmark: newDoc.Benchmark}
	merged.Benchmark.Config.Models = unionModels(newDoc, existing)

	var passthrough []*Row
	var order []Key
	byKey := make(map[Key]*Row)
	overlay := func(rows []*Row) {
		for _, row := range rows {
			key, ok := row.Key()
			if !ok {
				passthrough = append(passthrough, row)
				continue
			}
			if _, seen := byKey[key]; !seen {
				order = append(order, key)
			}
			byKey[key] = row
		}
	}
	if existing != nil {
		overlay(existing.Results)
	}
	overlay(newDoc.Results)

	merged.Results = append(merged.Results, passthrough...)
	for _, key := range order {
		merged.Results = append(merged.Results, byKey[key])
	}

	merged.ModelSummaries = modelSummariesFromRows(merged.Results, documentLabels(merged))
	merged.GroupSummaries = groupSummariesFromRows(merged.Results)
	return merged
}

// unionModels keeps the new run's model roster and appends models from the
// existing document whose labels the new configuration no longer carries.
func unionModels(newDoc, existing *Document) []ModelEcho {
	models := append([]ModelEcho(nil), newDoc.Benchmark.Config.Models...)
	if existing == nil {
		return models
	}
	known := make(map[string]struct{}, len(models))
	for _, m := range models {
		known[m.Label] = struct{}{}
	}
	for _, m := range existing.Benchmark.Config.Models {
		if m.Label == "" {
			continue
		}
		if _, ok := known[m.Label]; ok {
			continue
		}
		models = append(models, m)
		known[m.Label] = struct{}{}
	}
	return models
}
