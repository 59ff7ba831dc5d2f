//
// Copyright (C) 2026 Scriptoria.  All rights reserved.
//
// paleobench is licensed under the Apache License Version 2.0.
//
//

package result

import "strings"

// DefaultErrorMarkers are case-insensitive substrings that flag a row whose
// model call nominally succeeded but whose output is provider error text.
// The list is a heuristic and deliberately small; callers with providers
// that phrase failures differently extend it via WithErrorMarkers.
var DefaultErrorMarkers = []string{
	"error:",
	"badrequesterror",
	"anthropicexception",
	"rate limit",
	"timeout",
	"traceback",
}

type skipOptions struct {
	modelLabels  map[string]struct{}
	errorMarkers []string
}

// SkipOption configures skip-set derivation.
type SkipOption func(*skipOptions)

// WithModelLabels restricts the skip-set to rows whose model label is in
// labels, so rows for models absent from the current configuration do not
// suppress re-evaluation.
func WithModelLabels(labels map[string]struct{}) SkipOption {
	return func(o *skipOptions) {
		o.modelLabels = labels
	}
}

// WithErrorMarkers replaces the default error-signature list.
func WithErrorMarkers(markers []string) SkipOption {
	return func(o *skipOptions) {
		o.errorMarkers = markers
	}
}

// CompletedKeys derives the resume skip-set from a persisted document. A
// row counts as completed only when its error field is empty, its output is
// non-empty, and the output does not look like provider error text.
func CompletedKeys(doc *Document, opt ...SkipOption) map[Key]struct{} {
	opts := &skipOptions{errorMarkers: DefaultErrorMarkers}
	for _, o := range opt {
		o(opts)
	}
	keys := make(map[Key]struct{})
	if doc == nil {
		return keys
	}
	for _, row := range doc.Results {
		key, ok := row.Key()
		if !ok {
			continue
		}
		if opts.modelLabels != nil {
			if _, ok := opts.modelLabels[key.Model]; !ok {
				continue
			}
		}
		if !isCompletedRow(row, opts.errorMarkers) {
			continue
		}
		keys[key] = struct{}{}
	}
	return keys
}

func isCompletedRow(row *Row, markers []string) bool {
	if strings.TrimSpace(row.Error) != "" {
		return false
	}
	output := strings.TrimSpace(row.ModelOutput)
	if output == "" {
		return false
	}
	return !looksLikeErrorText(output, markers)
}

func looksLikeErrorText(text string, markers []string) bool {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return false
	}
	for _, marker := range markers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
