//
// Copyright (C) 2026 Scriptoria.  All rights reserved.
//
// paleobench is licensed under the Apache License Version 2.0.
//
//

package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptoria/paleobench/config"
	"github.com/scriptoria/paleobench/result"
	"github.com/scriptoria/paleobench/vision"
)

// fakeInvoker returns canned responses while tracking how many invocations
// run at the same time.
type fakeInvoker struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	calls       int
	delay       time.Duration
	failFor     string // image URL whose unit fails with a Go error
	errorFor    string // image URL whose unit fails on the response
}

func (f *fakeInvoker) Evaluate(
	ctx context.Context,
	model *config.Model,
	imagePath string,
	prompts config.Prompts,
) (*vision.Response, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if imagePath == f.failFor {
		return nil, errors.New("connection reset")
	}
	if imagePath == f.errorFor {
		return &vision.Response{ModelLabel: model.Label, Error: "rate limited"}, nil
	}
	return &vision.Response{
		Text:           "in principio erat verbum",
		InputTokens:    100,
		OutputTokens:   20,
		TotalTokens:    120,
		Cost:           0.0005,
		LatencySeconds: 0.01,
		ModelLabel:     model.Label,
	}, nil
}

func runConfig(samples int) *config.Config {
	group := &config.Group{Name: "g1"}
	for i := 0; i < samples; i++ {
		group.Samples = append(group.Samples, &config.Sample{
			ImageURL:    fmt.Sprintf("https://x/%d/info.json", i),
			GroundTruth: fmt.Sprintf("gt%d.txt", i),
			CachedImage: fmt.Sprintf("/cache/%d.jpg", i),
		})
	}
	return &config.Config{
		Name:           "test",
		MaxConcurrency: 2,
		Prompts:        config.Prompts{System: "sys", User: "usr"},
		Models:         []*config.Model{{ID: "id-a", Label: "model-a"}},
		Groups:         []*config.Group{group},
	}
}

func staticGroundTruth(string) (string, error) {
	return "in principio erat verbum", nil
}

func TestRunRespectsConcurrencyCap(t *testing.T) {
	invoker := &fakeInvoker{delay: 20 * time.Millisecond}
	var mu sync.Mutex
	var checkpointSizes []int

	state, err := Run(context.Background(), runConfig(5),
		WithInvoker(invoker),
		WithGroundTruthReader(staticGroundTruth),
		WithCheckpoint(func(s *result.RunState) error {
			mu.Lock()
			defer mu.Unlock()
			checkpointSizes = append(checkpointSizes, len(s.Outcomes))
			return nil
		}),
	)
	require.NoError(t, err)

	assert.Len(t, state.Outcomes, 5)
	assert.Equal(t, 5, invoker.calls)
	assert.LessOrEqual(t, invoker.maxInFlight, 2)
	assert.GreaterOrEqual(t, invoker.maxInFlight, 1)

	// One checkpoint per completion, each observing one more outcome.
	assert.Equal(t, []int{1, 2, 3, 4, 5}, checkpointSizes)

	// Every outcome is a scored row.
	for _, row := range state.Outcomes {
		assert.Empty(t, row.Error)
		require.NotNil(t, row.Metrics)
		assert.Zero(t, row.Metrics.CER)
	}
	summary := state.ModelSummaries["model-a"]
	require.NotNil(t, summary)
	assert.Equal(t, 5, summary["samples_evaluated"])
	assert.Equal(t, 600, summary["total_tokens"])
}

func TestRunSkipsCompletedUnits(t *testing.T) {
	cfg := runConfig(3)
	skip := map[result.Key]struct{}{
		result.MakeKey("model-a", "g1", "https://x/1/info.json", "", "gt1.txt"): {},
	}
	invoker := &fakeInvoker{}

	state, err := Run(context.Background(), cfg,
		WithInvoker(invoker),
		WithGroundTruthReader(staticGroundTruth),
		WithSkipKeys(skip),
	)
	require.NoError(t, err)

	assert.Len(t, state.Outcomes, 2)
	for _, row := range state.Outcomes {
		assert.NotEqual(t, "https://x/1/info.json", row.Image)
	}
}

func TestRunAllUnitsSkipped(t *testing.T) {
	cfg := runConfig(1)
	skip := map[result.Key]struct{}{
		result.MakeKey("model-a", "g1", "https://x/0/info.json", "", "gt0.txt"): {},
	}
	invoker := &fakeInvoker{}

	state, err := Run(context.Background(), cfg,
		WithInvoker(invoker),
		WithGroundTruthReader(staticGroundTruth),
		WithSkipKeys(skip),
	)
	require.NoError(t, err)
	assert.Empty(t, state.Outcomes)
	assert.Zero(t, invoker.calls)
}

func TestRunRecordsUnitFailures(t *testing.T) {
	invoker := &fakeInvoker{
		failFor:  "/cache/0.jpg",
		errorFor: "/cache/1.jpg",
	}

	state, err := Run(context.Background(), runConfig(3),
		WithInvoker(invoker),
		WithGroundTruthReader(staticGroundTruth),
	)
	require.NoError(t, err)
	require.Len(t, state.Outcomes, 3)

	byImage := make(map[string]*result.Row)
	for _, row := range state.Outcomes {
		byImage[row.Image] = row
	}

	failed := byImage["https://x/0/info.json"]
	assert.Equal(t, "connection reset", failed.Error)
	assert.Nil(t, failed.Metrics)

	responseError := byImage["https://x/1/info.json"]
	assert.Equal(t, "rate limited", responseError.Error)
	assert.Nil(t, responseError.Metrics)

	ok := byImage["https://x/2/info.json"]
	assert.Empty(t, ok.Error)
	assert.NotNil(t, ok.Metrics)

	summary := state.ModelSummaries["model-a"]
	assert.Equal(t, 1, summary["samples_evaluated"])
	assert.Equal(t, 2, summary["samples_failed"])
}

func TestRunCheckpointFailureStopsRun(t *testing.T) {
	invoker := &fakeInvoker{delay: 10 * time.Millisecond}

	state, err := Run(context.Background(), runConfig(10),
		WithInvoker(invoker),
		WithGroundTruthReader(staticGroundTruth),
		WithCheckpoint(func(*result.RunState) error {
			return errors.New("disk full")
		}),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	// The first completion latches the failure; anything already in flight
	// still drains, but nothing new launches.
	assert.Less(t, len(state.Outcomes), 10)
}

func TestRunContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	invoker := &fakeInvoker{}
	state, err := Run(ctx, runConfig(3),
		WithInvoker(invoker),
		WithGroundTruthReader(staticGroundTruth),
	)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, state.Outcomes)
	assert.Zero(t, invoker.calls)
}

func TestRunGroundTruthReadFailure(t *testing.T) {
	_, err := Run(context.Background(), runConfig(1),
		WithInvoker(&fakeInvoker{}),
		WithGroundTruthReader(func(string) (string, error) {
			return "", errors.New("permission denied")
		}),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read ground truth")
}

func TestRunRequiresInvoker(t *testing.T) {
	_, err := Run(context.Background(), runConfig(1))
	require.Error(t, err)

	_, err = Run(context.Background(), nil, WithInvoker(&fakeInvoker{}))
	require.Error(t, err)
}

func TestDisplayLabel(t *testing.T) {
	assert.Equal(t, "fol. 1r", displayLabel(&config.Sample{Label: "fol. 1r"}))
	assert.Equal(t, "page7",
		displayLabel(&config.Sample{ImageURL: "https://iiif.example.org/ms/page7/info.json"}))
}
