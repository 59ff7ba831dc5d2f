//
// Copyright (C) 2026 Scriptoria.  All rights reserved.
//
// paleobench is licensed under the Apache License Version 2.0.
//
//

// Package config loads and validates benchmark configuration from TOML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
)

// Side identifies which half of a two-page scan a sample covers.
type Side string

// Side values accepted in sample configuration.
const (
	SideVerso Side = "verso"
	SideRecto Side = "recto"
)

// Default values applied when the [bench] section omits a field.
const (
	defaultName           = "Paleo Benchmark Run"
	defaultOutput         = "results.json"
	defaultMaxConcurrency = 5
)

// Model keys that are consumed by the loader rather than forwarded to the
// provider as request parameters.
var reservedModelKeys = map[string]struct{}{
	"id":                   {},
	"label":                {},
	"input_cost_per_mtok":  {},
	"output_cost_per_mtok": {},
}

// Model describes one model under evaluation.
type Model struct {
	// ID is the provider model identifier sent on the wire.
	ID string
	// Label is the unique display name used to key results. Defaults to ID.
	Label string
	// Params carries every remaining key of the [[models]] entry. It is
	// passed through to the model invocation without interpretation.
	Params map[string]any
	// InputCostPerMTok and OutputCostPerMTok price usage in USD per million
	// tokens. Zero means the model is unpriced and cost stays zero.
	InputCostPerMTok  float64
	OutputCostPerMTok float64
}

// Sample describes one labeled image sample.
type Sample struct {
	// ImageURL is the IIIF info.json URL of the source image.
	ImageURL string
	// GroundTruth is the path of the reference transcription, resolved
	// relative to the config file directory.
	GroundTruth string
	// Label is an optional human-readable sample name.
	Label string
	// Side optionally restricts the sample to one half of the scan.
	Side Side
	// CachedImage is filled in by the IIIF prefetch step before the run.
	CachedImage string
}

// Group is a named collection of samples.
type Group struct {
	Name    string
	Samples []*Sample
}

// Prompts holds the system and user prompts sent with every image.
type Prompts struct {
	System string
	User   string
}

// Config is the validated benchmark configuration.
type Config struct {
	Name           string
	Output         string
	MaxConcurrency int
	Prompts        Prompts
	Models         []*Model
	Groups         []*Group
	// BaseDir is the directory of the config file; relative paths in the
	// document resolve against it.
	BaseDir string
}

// SampleCount returns the total number of configured samples across groups.
func (c *Config) SampleCount() int {
	n := 0
	for _, g := range c.Groups {
		n += len(g.Samples)
	}
	return n
}

// ModelLabels returns the set of configured model labels.
func (c *Config) ModelLabels() map[string]struct{} {
	labels := make(map[string]struct{}, len(c.Models))
	for _, m := range c.Models {
		labels[m.Label] = struct{}{}
	}
	return labels
}

// rawConfig mirrors the TOML document before validation.
type rawConfig struct {
	Bench   map[string]any   `toml:"bench"`
	Prompts map[string]any   `toml:"prompts"`
	Models  []map[string]any `toml:"models"`
	Groups  []rawGroup       `toml:"groups"`
}

type rawGroup struct {
	Name    string           `toml:"name"`
	Samples []map[string]any `toml:"samples"`
}

// Load reads, decodes and validates the TOML configuration at path.
// Validation failures are accumulated so a broken config reports every
// problem in one pass.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid TOML in %s: %w", path, err)
	}
	baseDir := filepath.Dir(path)

	var verr *multierror.Error
	cfg := &Config{
		Name:           defaultName,
		Output:         defaultOutput,
		MaxConcurrency: defaultMaxConcurrency,
		BaseDir:        baseDir,
	}

	if raw.Bench == nil {
		verr = multierror.Append(verr, fmt.Errorf("missing [bench] section"))
	} else {
		if v, ok := raw.Bench["name"].(string); ok {
			cfg.Name = v
		}
		if v, ok := raw.Bench["output"].(string); ok {
			cfg.Output = v
		}
		if v, ok := asInt(raw.Bench["max_concurrency"]); ok {
			cfg.MaxConcurrency = v
		}
		if cfg.MaxConcurrency < 1 {
			verr = multierror.Append(verr, fmt.Errorf("bench.max_concurrency must be at least 1"))
		}
	}

	if raw.Prompts == nil {
		verr = multierror.Append(verr, fmt.Errorf("missing [prompts] section"))
	} else {
		for _, key := range []string{"system", "user"} {
			if _, ok := raw.Prompts[key].(string); !ok {
				verr = multierror.Append(verr, fmt.Errorf("missing prompts.%s", key))
			}
		}
		cfg.Prompts.System, _ = raw.Prompts["system"].(string)
		cfg.Prompts.User, _ = raw.Prompts["user"].(string)
	}

	models, err := parseModels(raw.Models)
	if err != nil {
		verr = multierror.Append(verr, err)
	}
	cfg.Models = models

	groups, err := parseGroups(raw.Groups, baseDir)
	if err != nil {
		verr = multierror.Append(verr, err)
	}
	cfg.Groups = groups

	if err := verr.ErrorOrNil(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseModels(raw []map[string]any) ([]*Model, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("no [[models]] defined")
	}
	var verr *multierror.Error
	models := make([]*Model, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, entry := range raw {
		id, ok := entry["id"].(string)
		if !ok || id == "" {
			verr = multierror.Append(verr, fmt.Errorf("each [[models]] entry requires an 'id' field"))
			continue
		}
		label, ok := entry["label"].(string)
		if !ok || label == "" {
			label = id
		}
		if _, dup := seen[label]; dup {
			verr = multierror.Append(verr, fmt.Errorf("duplicate model label: %s", label))
			continue
		}
		seen[label] = struct{}{}
		m := &Model{ID: id, Label: label, Params: make(map[string]any)}
		m.InputCostPerMTok, _ = asFloat(entry["input_cost_per_mtok"])
		m.OutputCostPerMTok, _ = asFloat(entry["output_cost_per_mtok"])
		for k, v := range entry {
			if _, reserved := reservedModelKeys[k]; reserved {
				continue
			}
			m.Params[k] = v
		}
		models = append(models, m)
	}
	if err := verr.ErrorOrNil(); err != nil {
		return models, err
	}
	return models, nil
}

func parseGroups(raw []rawGroup, baseDir string) ([]*Group, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("no [[groups]] defined")
	}
	var verr *multierror.Error
	groups := make([]*Group, 0, len(raw))
	for _, g := range raw {
		if g.Name == "" {
			verr = multierror.Append(verr, fmt.Errorf("each [[groups]] entry requires a 'name' field"))
			continue
		}
		group := &Group{Name: g.Name}
		for _, s := range g.Samples {
			sample, err := parseSample(g.Name, s, baseDir)
			if err != nil {
				verr = multierror.Append(verr, err)
				continue
			}
			group.Samples = append(group.Samples, sample)
		}
		groups = append(groups, group)
	}
	if err := verr.ErrorOrNil(); err != nil {
		return groups, err
	}
	return groups, nil
}

func parseSample(groupName string, raw map[string]any, baseDir string) (*Sample, error) {
	imageURL, ok := raw["image"].(string)
	if !ok || imageURL == "" {
		return nil, fmt.Errorf("sample in group %q missing 'image'", groupName)
	}
	if !strings.HasPrefix(imageURL, "http://") && !strings.HasPrefix(imageURL, "https://") {
		return nil, fmt.Errorf("image URL must start with http:// or https://: %s", imageURL)
	}
	if !strings.HasSuffix(imageURL, "/info.json") {
		return nil, fmt.Errorf("image URL must end with /info.json: %s", imageURL)
	}
	gt, ok := raw["ground_truth"].(string)
	if !ok || gt == "" {
		return nil, fmt.Errorf("sample in group %q missing 'ground_truth'", groupName)
	}
	gtPath := gt
	if !filepath.IsAbs(gtPath) {
		gtPath = filepath.Join(baseDir, gtPath)
	}
	if _, err := os.Stat(gtPath); err != nil {
		return nil, fmt.Errorf("ground truth file not found: %s", gtPath)
	}
	sample := &Sample{ImageURL: imageURL, GroundTruth: gtPath}
	sample.Label, _ = raw["label"].(string)
	if sideValue, ok := raw["side"].(string); ok {
		side := Side(sideValue)
		if side != SideVerso && side != SideRecto {
			return nil, fmt.Errorf(
				"sample in group %q has invalid side %q; expected %q or %q",
				groupName, sideValue, SideVerso, SideRecto)
		}
		sample.Side = side
	}
	return sample, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
