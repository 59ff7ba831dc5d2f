//
// Copyright (C) 2026 Scriptoria.  All rights reserved.
//
// paleobench is licensed under the Apache License Version 2.0.
//
//

// Package runner schedules benchmark evaluation units under a bounded
// concurrency cap and feeds completed outcomes to a checkpoint sink.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/scriptoria/paleobench/config"
	"github.com/scriptoria/paleobench/log"
	"github.com/scriptoria/paleobench/metric"
	"github.com/scriptoria/paleobench/result"
	"github.com/scriptoria/paleobench/vision"
)

// Invoker performs exactly one model invocation per evaluation unit.
// Expected provider failures surface on the response's Error field;
// transport-level failures come back as an error. The scheduler records
// either one as the unit's terminal outcome and never retries.
type Invoker interface {
	Evaluate(ctx context.Context, model *config.Model, imagePath string, prompts config.Prompts) (*vision.Response, error)
}

// task is one (group, sample, model) evaluation unit with its reference
// text already read and normalized.
type task struct {
	group       *config.Group
	sample      *config.Sample
	model       *config.Model
	groundTruth string
}

// Run executes every configured (sample, model) unit whose identity key is
// not in the skip-set, with at most cfg.MaxConcurrency model calls in
// flight. After each completion the outcome is appended, summaries are
// recomputed from scratch and the checkpoint callback observes exactly that
// outcome set. The returned state contains only this invocation's outcomes.
//
// A unit failure is recorded and does not stop the run; a checkpoint
// failure stops new launches and is returned once in-flight units drain.
// Cancelling ctx stops launching new units without corrupting prior
// checkpoints.
func Run(ctx context.Context, cfg *config.Config, opt ...Option) (*result.RunState, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	opts := newOptions(opt...)
	if opts.invoker == nil {
		return nil, errors.New("invoker is nil")
	}

	state := result.NewRunState(cfg)

	tasks, err := enumerate(cfg, opts)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return state, nil
	}

	exec := &executor{
		state:      state,
		total:      len(tasks),
		invoker:    opts.invoker,
		prompts:    cfg.Prompts,
		checkpoint: opts.checkpoint,
	}
	pool, err := newUnitPool(cfg.MaxConcurrency)
	if err != nil {
		return nil, fmt.Errorf("create unit pool: %w", err)
	}
	defer pool.Release()

	start := time.Now()
	var wg sync.WaitGroup
	for _, t := range tasks {
		if ctx.Err() != nil || exec.failed() {
			break
		}
		wg.Add(1)
		param := unitParamPool.Get().(*unitParam)
		param.ctx = ctx
		param.task = t
		param.exec = exec
		param.wg = &wg
		if err := pool.Invoke(param); err != nil {
			wg.Done()
			param.reset()
			unitParamPool.Put(param)
			wg.Wait()
			return state, fmt.Errorf("submit unit: %w", err)
		}
	}
	wg.Wait()

	state.Duration = time.Since(start)
	state.RecomputeSummaries()

	if err := exec.err(); err != nil {
		return state, err
	}
	return state, ctx.Err()
}

// enumerate walks groups, samples and models in configuration order,
// reads the ground truth once per sample, and drops units whose identity
// key is already satisfied. An unreadable ground-truth file is fatal here:
// the unit could never be scored.
func enumerate(cfg *config.Config, opts *options) ([]*task, error) {
	var tasks []*task
	for _, group := range cfg.Groups {
		for _, sample := range group.Samples {
			groundTruth, err := opts.readGroundTruth(sample.GroundTruth)
			if err != nil {
				return nil, fmt.Errorf("read ground truth %s: %w", sample.GroundTruth, err)
			}
			for _, model := range cfg.Models {
				key := result.MakeKey(model.Label, group.Name, sample.ImageURL, sample.Label, sample.GroundTruth)
				if _, skip := opts.skipKeys[key]; skip {
					continue
				}
				tasks = append(tasks, &task{
					group:       group,
					sample:      sample,
					model:       model,
					groundTruth: groundTruth,
				})
			}
		}
	}
	return tasks, nil
}

// executor owns all state shared between concurrently completing units:
// the progress counters, the growing outcome set, and the checkpoint
// error latch. One mutex guards everything, so appending an outcome,
// recomputing summaries and invoking the checkpoint form a single atomic
// step relative to any other completion.
type executor struct {
	mu            sync.Mutex
	state         *result.RunState
	total         int
	started       int
	completed     int
	invoker       Invoker
	prompts       config.Prompts
	checkpoint    func(*result.RunState) error
	checkpointErr error
}

// run executes one unit. It is called from a pool worker, so at most
// MaxConcurrency invocations run concurrently.
func (e *executor) run(ctx context.Context, t *task) {
	e.mu.Lock()
	e.started++
	n := e.started
	e.mu.Unlock()

	label := displayLabel(t.sample)
	log.Infof("[%d/%d] evaluating %s with %s", n, e.total, label, t.model.Label)

	resp, err := e.invoker.Evaluate(ctx, t.model, t.sample.CachedImage, e.prompts)
	row := e.buildRow(t, resp, err)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.completed++
	status := "ok"
	if row.Error != "" {
		status = "FAIL"
	}
	log.Infof("[%d/%d done] %s x %s - %s (%.3fs)",
		e.completed, e.total, label, t.model.Label, status, row.ResponseMetadata.LatencySeconds)

	e.state.Outcomes = append(e.state.Outcomes, row)
	e.state.RecomputeSummaries()
	if e.checkpoint != nil && e.checkpointErr == nil {
		if cerr := e.checkpoint(e.state); cerr != nil {
			e.checkpointErr = fmt.Errorf("checkpoint: %w", cerr)
			log.Errorf("checkpoint failed, no further units will launch: %v", cerr)
		}
	}
}

// buildRow turns one invocation result into a sample outcome. A failed
// call records the error and carries no metrics.
func (e *executor) buildRow(t *task, resp *vision.Response, err error) *result.Row {
	row := &result.Row{
		Group:           t.group.Name,
		Label:           t.sample.Label,
		Image:           t.sample.ImageURL,
		GroundTruthFile: t.sample.GroundTruth,
		GroundTruthText: t.groundTruth,
		Model:           t.model.Label,
	}
	if err != nil {
		row.Error = err.Error()
		return row
	}
	row.ModelOutput = metric.Normalize(resp.Text)
	row.Error = resp.Error
	row.ResponseMetadata = result.Usage{
		InputTokens:    resp.InputTokens,
		OutputTokens:   resp.OutputTokens,
		TotalTokens:    resp.TotalTokens,
		Cost:           resp.Cost,
		LatencySeconds: resp.LatencySeconds,
	}
	if resp.Error == "" {
		scores := metric.Compute(t.groundTruth, resp.Text)
		row.Metrics = &scores
	}
	return row
}

func (e *executor) failed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.checkpointErr != nil
}

func (e *executor) err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.checkpointErr
}

// displayLabel names a sample in progress output: the configured label if
// present, otherwise the image identifier from its IIIF URL.
func displayLabel(sample *config.Sample) string {
	if sample.Label != "" {
		return sample.Label
	}
	url := strings.TrimSuffix(sample.ImageURL, "/info.json")
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}
