//
// Copyright (C) 2026 Scriptoria.  All rights reserved.
//
// paleobench is licensed under the Apache License Version 2.0.
//
//

// Command paleobench runs a handwritten-text-recognition benchmark for
// vision-capable LLMs against IIIF-hosted manuscript images.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/scriptoria/paleobench/config"
	"github.com/scriptoria/paleobench/iiif"
	"github.com/scriptoria/paleobench/log"
	"github.com/scriptoria/paleobench/result"
	"github.com/scriptoria/paleobench/runner"
	"github.com/scriptoria/paleobench/vision"
)

// Exit codes: 0 success or nothing to do, 1 configuration/output errors,
// 2 runtime failure or interrupt.
const (
	exitOK      = 0
	exitConfig  = 1
	exitRuntime = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to TOML config file (required)")
	outputPath := flag.String("output", "", "override output path from config")
	dryRun := flag.Bool("dry-run", false, "validate config only, don't run benchmark")
	recompute := flag.Bool("recompute-comparisons", false,
		"recompute metrics/summaries from existing output using current ground-truth files")
	logLevel := flag.String("log-level", log.LevelInfo, "log level: debug, info, warn, error")
	flag.Parse()

	log.SetLevel(*logLevel)

	if *configPath == "" {
		log.Error("missing required -config flag")
		return exitConfig
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("config error: %v", err)
		return exitConfig
	}
	if *outputPath != "" {
		cfg.Output = *outputPath
	}

	existing, err := result.Load(cfg.Output)
	if err != nil {
		log.Errorf("output error: %v", err)
		return exitConfig
	}

	log.Infof("config OK: %d model(s), %d group(s), %d sample(s)",
		len(cfg.Models), len(cfg.Groups), cfg.SampleCount())

	if *dryRun {
		return exitOK
	}

	if *recompute {
		if existing == nil {
			log.Errorf("output error: no existing results found at %s", cfg.Output)
			return exitConfig
		}
		updated, stats := result.Recompute(existing, cfg.BaseDir)
		if err := result.Write(updated, cfg.Output); err != nil {
			log.Errorf("output error: %v", err)
			return exitRuntime
		}
		log.Infof("recomputed comparisons for %d row(s); skipped %d row(s)",
			stats.Recomputed, stats.Skipped)
		return exitOK
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := prefetchImages(ctx, cfg); err != nil {
		log.Errorf("IIIF error: %v", err)
		return exitConfig
	}

	var skipKeys map[result.Key]struct{}
	if existing != nil {
		skipKeys = result.CompletedKeys(existing, result.WithModelLabels(cfg.ModelLabels()))
		if len(skipKeys) > 0 {
			log.Infof("found %d completed sample/model pairs in %s; resuming", len(skipKeys), cfg.Output)
		}
	}

	state, err := runner.Run(ctx, cfg,
		runner.WithInvoker(vision.NewClient()),
		runner.WithSkipKeys(skipKeys),
		runner.WithCheckpoint(func(s *result.RunState) error {
			merged := result.Merge(result.BuildDocument(s), existing)
			return result.Write(merged, cfg.Output)
		}),
	)
	if err != nil {
		log.Errorf("runtime error: %v", err)
		return exitRuntime
	}
	if len(state.Outcomes) == 0 {
		log.Info("nothing to run: all configured sample/model pairs are already complete")
		return exitOK
	}

	merged := result.Merge(result.BuildDocument(state), existing)
	if err := result.Write(merged, cfg.Output); err != nil {
		log.Errorf("output error: %v", err)
		return exitRuntime
	}
	printSummary(state)
	log.Infof("results written to %s", cfg.Output)
	return exitOK
}

// prefetchImages downloads every distinct (image, side) pair once and
// points each sample at its cached file.
func prefetchImages(ctx context.Context, cfg *config.Config) error {
	type sourceImage struct {
		url  string
		side config.Side
	}
	cacheDir := filepath.Join(cfg.BaseDir, ".cache")
	fetcher := iiif.NewFetcher()
	cached := make(map[sourceImage]string)
	for _, group := range cfg.Groups {
		for _, sample := range group.Samples {
			src := sourceImage{url: sample.ImageURL, side: sample.Side}
			path, ok := cached[src]
			if !ok {
				if src.side != "" {
					log.Infof("fetching IIIF image: %s (side=%s)", src.url, src.side)
				} else {
					log.Infof("fetching IIIF image: %s", src.url)
				}
				var err error
				path, err = fetcher.Fetch(ctx, src.url, cacheDir, src.side)
				if err != nil {
					return err
				}
				cached[src] = path
			}
			sample.CachedImage = path
		}
	}
	return nil
}

// printSummary renders the model summary and per-group breakdown tables
// to stderr, configuration order first and historical labels after.
func printSummary(state *result.RunState) {
	out := os.Stderr

	fmt.Fprintf(out, "\n=== Model Summary ===\n")
	header := fmt.Sprintf("%-40s %9s %9s %9s %9s %8s %8s %7s",
		"Model", "CER(avg)", "WER(avg)", "Tokens", "Cost", "Time(s)", "Samples", "Errors")
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, dashes(len(header)))
	for _, label := range summaryLabels(state) {
		summary := state.ModelSummaries[label]
		fmt.Fprintf(out, "%-40s %9.4f %9.4f %9d %9s %8.1f %8d %7d\n",
			label,
			floatField(summary, "cer_mean"),
			floatField(summary, "wer_mean"),
			intField(summary, "total_tokens"),
			formatCost(floatField(summary, "total_cost")),
			floatField(summary, "total_latency_seconds"),
			intField(summary, "samples_evaluated"),
			intField(summary, "samples_failed"))
	}

	if len(state.GroupSummaries) > 0 {
		fmt.Fprintf(out, "\n=== Per-Group Breakdown ===\n")
		header = fmt.Sprintf("%-40s %-20s %9s %9s %9s %9s %8s",
			"Model", "Group", "CER(avg)", "WER(avg)", "Tokens", "Cost", "Time(s)")
		fmt.Fprintln(out, header)
		fmt.Fprintln(out, dashes(len(header)))
		for _, label := range summaryLabels(state) {
			groups := state.GroupSummaries[label]
			names := make([]string, 0, len(groups))
			for name := range groups {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				summary := groups[name]
				fmt.Fprintf(out, "%-40s %-20s %9.4f %9.4f %9d %9s %8.1f\n",
					label, name,
					floatField(summary, "cer_mean"),
					floatField(summary, "wer_mean"),
					intField(summary, "total_tokens"),
					formatCost(floatField(summary, "total_cost")),
					floatField(summary, "total_latency_seconds"))
			}
		}
	}

	fmt.Fprintf(out, "\nTotal duration: %.1fs\n", state.Duration.Seconds())
}

// summaryLabels lists model labels in configuration order, then any label
// present only in the summaries, sorted.
func summaryLabels(state *result.RunState) []string {
	var labels []string
	seen := make(map[string]struct{})
	for _, m := range state.Config.Models {
		if _, ok := state.ModelSummaries[m.Label]; ok {
			labels = append(labels, m.Label)
			seen[m.Label] = struct{}{}
		}
	}
	var rest []string
	for label := range state.ModelSummaries {
		if _, ok := seen[label]; !ok {
			rest = append(rest, label)
		}
	}
	sort.Strings(rest)
	return append(labels, rest...)
}

func formatCost(cost float64) string {
	if cost < 0.01 {
		return fmt.Sprintf("$%.4f", cost)
	}
	return fmt.Sprintf("$%.2f", cost)
}

func dashes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '-'
	}
	return string(b)
}

func floatField(s result.Summary, key string) float64 {
	switch v := s[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func intField(s result.Summary, key string) int {
	switch v := s[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
