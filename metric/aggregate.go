//
// Copyright (C) 2026 Scriptoria.  All rights reserved.
//
// paleobench is licensed under the Apache License Version 2.0.
//
//

package metric

import "sort"

// aggregateFields enumerates the numeric score fields that get mean, median,
// min and max statistics. The integer Levenshtein distance aggregates as a
// float alongside the rates.
var aggregateFields = []struct {
	name string
	get  func(Scores) float64
}{
	{"cer", func(s Scores) float64 { return s.CER }},
	{"wer", func(s Scores) float64 { return s.WER }},
	{"cer_case_insensitive", func(s Scores) float64 { return s.CERCaseInsensitive }},
	{"wer_case_insensitive", func(s Scores) float64 { return s.WERCaseInsensitive }},
	{"normalized_levenshtein_similarity", func(s Scores) float64 { return s.NormalizedLevenshteinSimilarity }},
	{"levenshtein_distance", func(s Scores) float64 { return float64(s.LevenshteinDistance) }},
}

// Aggregate reduces a collection of scores to summary statistics keyed
// "<field>_<stat>" for stat in mean, median, min, max. An empty input yields
// an empty map rather than fabricated zeros.
func Aggregate(scores []Scores) map[string]float64 {
	result := make(map[string]float64)
	if len(scores) == 0 {
		return result
	}
	values := make([]float64, len(scores))
	for _, field := range aggregateFields {
		for i, s := range scores {
			values[i] = field.get(s)
		}
		result[field.name+"_mean"] = mean(values)
		result[field.name+"_median"] = median(values)
		result[field.name+"_min"] = minOf(values)
		result[field.name+"_max"] = maxOf(values)
	}
	return result
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
