//
// Copyright (C) 2026 Scriptoria.  All rights reserved.
//
// paleobench is licensed under the Apache License Version 2.0.
//
//

// Package metric scores model transcriptions against reference text.
//
// All comparisons run over normalized text: diacritics and punctuation are
// stripped, horizontal whitespace collapses to single spaces and line
// structure stays significant. Error rates follow the usual CER/WER
// definitions with the reference as denominator.
package metric

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Scores holds the per-sample comparison metrics between a reference
// transcription and a model prediction.
type Scores struct {
	CER                             float64 `json:"cer"`
	WER                             float64 `json:"wer"`
	CERCaseInsensitive              float64 `json:"cer_case_insensitive"`
	WERCaseInsensitive              float64 `json:"wer_case_insensitive"`
	LevenshteinDistance             int     `json:"levenshtein_distance"`
	NormalizedLevenshteinSimilarity float64 `json:"normalized_levenshtein_similarity"`
	CharCountReference              int     `json:"char_count_reference"`
	WordCountReference              int     `json:"word_count_reference"`
}

var (
	trailingSpaceBeforeNewline = regexp.MustCompile(`[ \t]+(\r?\n)`)
	trailingSpaceAtEnd         = regexp.MustCompile(`[ \t]+$`)
)

// Normalize prepares text for comparison: NFD decomposition, combining
// marks and punctuation removed, runs of horizontal whitespace collapsed to
// one space, trailing spaces dropped at line ends, NFC recomposition.
// Newlines stay significant.
func Normalize(text string) string {
	decomposed := norm.NFD.String(text)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) || unicode.IsPunct(r) {
			continue
		}
		b.WriteRune(r)
	}
	collapsed := collapseHorizontalSpace(b.String())
	collapsed = trailingSpaceBeforeNewline.ReplaceAllString(collapsed, "$1")
	collapsed = trailingSpaceAtEnd.ReplaceAllString(collapsed, "")
	return norm.NFC.String(collapsed)
}

// collapseHorizontalSpace replaces each run of whitespace other than CR/LF
// with a single space.
func collapseHorizontalSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if unicode.IsSpace(r) && r != '\n' && r != '\r' {
			inRun = true
			continue
		}
		if inRun {
			b.WriteRune(' ')
			inRun = false
		}
		b.WriteRune(r)
	}
	if inRun {
		b.WriteRune(' ')
	}
	return b.String()
}

// Compute scores prediction against groundTruth. Both sides are normalized
// before comparison. An empty reference yields the degenerate scores used by
// the persisted format: zero error rates for an empty prediction, full error
// rates otherwise.
func Compute(groundTruth, prediction string) Scores {
	gt := Normalize(groundTruth)
	pred := Normalize(prediction)

	if gt == "" {
		full := 1.0
		similarity := 0.0
		if pred == "" {
			full = 0.0
			similarity = 1.0
		}
		return Scores{
			CER:                             full,
			WER:                             full,
			CERCaseInsensitive:              full,
			WERCaseInsensitive:              full,
			LevenshteinDistance:             utf8.RuneCountInString(pred),
			NormalizedLevenshteinSimilarity: similarity,
		}
	}

	gtLower := strings.ToLower(gt)
	predLower := strings.ToLower(pred)

	gtRunes := []rune(gt)
	predRunes := []rune(pred)
	distance := levenshtein(gtRunes, predRunes)

	return Scores{
		CER:                             errorRate(distance, len(gtRunes)),
		WER:                             wordErrorRate(gt, pred),
		CERCaseInsensitive:              errorRate(levenshtein([]rune(gtLower), []rune(predLower)), len(gtRunes)),
		WERCaseInsensitive:              wordErrorRate(gtLower, predLower),
		LevenshteinDistance:             distance,
		NormalizedLevenshteinSimilarity: normalizedSimilarity(distance, len(gtRunes), len(predRunes)),
		CharCountReference:              len(gtRunes),
		WordCountReference:              len(strings.Fields(gt)),
	}
}

func errorRate(distance, referenceLen int) float64 {
	if referenceLen == 0 {
		return 0
	}
	return float64(distance) / float64(referenceLen)
}

func wordErrorRate(reference, hypothesis string) float64 {
	refWords := strings.Fields(reference)
	hypWords := strings.Fields(hypothesis)
	if len(refWords) == 0 {
		if len(hypWords) == 0 {
			return 0
		}
		return 1
	}
	return float64(levenshtein(refWords, hypWords)) / float64(len(refWords))
}

func normalizedSimilarity(distance, lenA, lenB int) float64 {
	longest := max(lenA, lenB)
	if longest == 0 {
		return 1
	}
	return 1 - float64(distance)/float64(longest)
}

// levenshtein computes the edit distance between two sequences using the
// classic two-row dynamic program.
func levenshtein[T comparable](a, b []T) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
