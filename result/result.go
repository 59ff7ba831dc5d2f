//
// Copyright (C) 2026 Scriptoria.  All rights reserved.
//
// paleobench is licensed under the Apache License Version 2.0.
//
//

// Package result holds the benchmark result model: per-sample outcomes,
// the persisted result document, identity-keyed merge and resume logic,
// atomic persistence and the offline metric recompute pass.
package result

import (
	"encoding/json"
	"math"
	"time"

	"github.com/scriptoria/paleobench/config"
	"github.com/scriptoria/paleobench/metric"
)

// Usage records the resource consumption of one model invocation.
type Usage struct {
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	Cost           float64 `json:"cost"`
	LatencySeconds float64 `json:"latency_seconds"`
}

// Row is one realized evaluation outcome, both the in-memory form and the
// persisted "results" entry. A row with a non-empty Error never carries
// metrics.
type Row struct {
	Group            string         `json:"group"`
	Label            string         `json:"label"`
	Image            string         `json:"image"`
	GroundTruthFile  string         `json:"ground_truth_file"`
	GroundTruthText  string         `json:"ground_truth_text"`
	Model            string         `json:"model"`
	ModelOutput      string         `json:"model_output"`
	Error            string         `json:"error"`
	Metrics          *metric.Scores `json:"metrics"`
	ResponseMetadata Usage          `json:"response_metadata"`

	// raw holds the exact bytes a persisted row was decoded from. Untouched
	// rows re-emit those bytes, so passthrough rows and historical rows
	// survive merges verbatim, unknown fields included.
	raw   json.RawMessage
	dirty bool
}

// rowFields avoids MarshalJSON/UnmarshalJSON recursion on Row.
type rowFields Row

// UnmarshalJSON decodes the known row fields and retains the raw bytes.
func (r *Row) UnmarshalJSON(data []byte) error {
	var fields rowFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = Row(fields)
	r.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the original bytes for rows the engine never
// touched and a fresh encoding for new or updated rows.
func (r *Row) MarshalJSON() ([]byte, error) {
	if r.raw != nil && !r.dirty {
		return r.raw, nil
	}
	return json.Marshal((*rowFields)(r))
}

// markUpdated flags the row so the next write serializes its current fields
// instead of the bytes it was loaded from.
func (r *Row) markUpdated() {
	r.dirty = true
}

// clone returns a copy of the row that can be updated without aliasing the
// original snapshot.
func (r *Row) clone() *Row {
	dup := *r
	if r.Metrics != nil {
		scores := *r.Metrics
		dup.Metrics = &scores
	}
	return &dup
}

// Summary is one flat summary block: aggregate metric statistics plus
// counters, exactly as persisted.
type Summary map[string]any

// Document is the persisted result document. It is the sole wire format:
// a benchmark header, one row per historical outcome, and fully derived
// summaries.
type Document struct {
	Benchmark      Header                        `json:"benchmark"`
	Results        []*Row                        `json:"results"`
	ModelSummaries map[string]Summary            `json:"model_summaries"`
	GroupSummaries map[string]map[string]Summary `json:"group_summaries"`
}

// Header carries run identification and the configuration echo.
type Header struct {
	Name                 string     `json:"name"`
	Timestamp            string     `json:"timestamp"`
	TotalDurationSeconds float64    `json:"total_duration_seconds"`
	Config               ConfigEcho `json:"config"`
}

// ConfigEcho preserves the configuration a document was produced under.
type ConfigEcho struct {
	Prompts     PromptsEcho `json:"prompts"`
	Models      []ModelEcho `json:"models"`
	Groups      []GroupEcho `json:"groups"`
	SampleCount int         `json:"sample_count"`
}

// PromptsEcho echoes the prompts used for the run.
type PromptsEcho struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// ModelEcho echoes one configured model. Rosters from earlier runs are
// retained across merges so provenance survives configuration changes.
type ModelEcho struct {
	Label  string         `json:"label"`
	ID     string         `json:"id"`
	Params map[string]any `json:"params"`
}

// GroupEcho echoes one configured sample group.
type GroupEcho struct {
	Name        string `json:"name"`
	SampleCount int    `json:"sample_count"`
}

// RunState is the accumulating state of one process invocation: the
// outcomes produced so far and summaries derived from exactly that outcome
// set. Summaries are never patched incrementally.
type RunState struct {
	Config         *config.Config
	Outcomes       []*Row
	ModelSummaries map[string]Summary
	GroupSummaries map[string]map[string]Summary
	Timestamp      time.Time
	Duration       time.Duration
}

// NewRunState creates the empty run state for one invocation.
func NewRunState(cfg *config.Config) *RunState {
	return &RunState{
		Config:         cfg,
		ModelSummaries: make(map[string]Summary),
		GroupSummaries: make(map[string]map[string]Summary),
		Timestamp:      time.Now().UTC(),
	}
}

// RecomputeSummaries rebuilds both summary maps from scratch over the
// current outcome set, scoped to the configured models and groups.
func (s *RunState) RecomputeSummaries() {
	s.ModelSummaries = make(map[string]Summary, len(s.Config.Models))
	s.GroupSummaries = make(map[string]map[string]Summary, len(s.Config.Models))

	for _, model := range s.Config.Models {
		var rows []*Row
		for _, r := range s.Outcomes {
			if r.Model == model.Label {
				rows = append(rows, r)
			}
		}
		s.ModelSummaries[model.Label] = summarizeRows(rows, true)

		groups := make(map[string]Summary)
		for _, group := range s.Config.Groups {
			var groupRows []*Row
			for _, r := range rows {
				if r.Group == group.Name {
					groupRows = append(groupRows, r)
				}
			}
			if !hasScores(groupRows) {
				continue
			}
			groups[group.Name] = summarizeRows(groupRows, false)
		}
		s.GroupSummaries[model.Label] = groups
	}
}

// BuildDocument renders a run state as a persistable document.
func BuildDocument(state *RunState) *Document {
	cfg := state.Config
	echo := ConfigEcho{
		Prompts:     PromptsEcho{System: cfg.Prompts.System, User: cfg.Prompts.User},
		SampleCount: cfg.SampleCount(),
	}
	for _, m := range cfg.Models {
		echo.Models = append(echo.Models, ModelEcho{Label: m.Label, ID: m.ID, Params: m.Params})
	}
	for _, g := range cfg.Groups {
		echo.Groups = append(echo.Groups, GroupEcho{Name: g.Name, SampleCount: len(g.Samples)})
	}
	return &Document{
		Benchmark: Header{
			Name:                 cfg.Name,
			Timestamp:            state.Timestamp.Format(time.RFC3339),
			TotalDurationSeconds: round3(state.Duration.Seconds()),
			Config:               echo,
		},
		Results:        state.Outcomes,
		ModelSummaries: state.ModelSummaries,
		GroupSummaries: state.GroupSummaries,
	}
}

func round3(v float64) float64 {
	return math.Round(v*1e3) / 1e3
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
