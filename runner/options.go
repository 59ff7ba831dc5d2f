//
// Copyright (C) 2026 Scriptoria.  All rights reserved.
//
// paleobench is licensed under the Apache License Version 2.0.
//
//

package runner

import (
	"os"

	"github.com/scriptoria/paleobench/metric"
	"github.com/scriptoria/paleobench/result"
)

// GroundTruthReader resolves a ground-truth path to normalized reference
// text.
type GroundTruthReader func(path string) (string, error)

type options struct {
	invoker         Invoker
	skipKeys        map[result.Key]struct{}
	checkpoint      func(*result.RunState) error
	readGroundTruth GroundTruthReader
}

func newOptions(opt ...Option) *options {
	opts := &options{
		readGroundTruth: readNormalizedFile,
	}
	for _, o := range opt {
		o(opts)
	}
	return opts
}

// Option configures a Run invocation.
type Option func(*options)

// WithInvoker supplies the model-invocation capability. Required.
func WithInvoker(invoker Invoker) Option {
	return func(o *options) {
		o.invoker = invoker
	}
}

// WithSkipKeys supplies the identity keys already satisfied by a prior
// run; matching units are dropped before execution.
func WithSkipKeys(keys map[result.Key]struct{}) Option {
	return func(o *options) {
		o.skipKeys = keys
	}
}

// WithCheckpoint registers a callback invoked with the accumulated run
// state after every unit completes. Callbacks fire sequentially in
// completion order; a callback error stops new units from launching.
func WithCheckpoint(checkpoint func(*result.RunState) error) Option {
	return func(o *options) {
		o.checkpoint = checkpoint
	}
}

// WithGroundTruthReader overrides how reference text is read and
// normalized.
func WithGroundTruthReader(reader GroundTruthReader) Option {
	return func(o *options) {
		o.readGroundTruth = reader
	}
}

func readNormalizedFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return metric.Normalize(string(data)), nil
}
