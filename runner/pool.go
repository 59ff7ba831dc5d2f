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

	"github.com/panjf2000/ants/v2"
)

type unitParam struct {
	ctx  context.Context
	task *task
	exec *executor
	wg   *sync.WaitGroup
}

func (p *unitParam) reset() {
	p.ctx = nil
	p.task = nil
	p.exec = nil
	p.wg = nil
}

var unitParamPool = &sync.Pool{
	New: func() any { return new(unitParam) },
}

// newUnitPool creates the worker pool that caps concurrent model calls.
// Submission blocks while all workers are busy, so enumeration and
// bookkeeping stay eager while expensive calls queue on the pool.
func newUnitPool(size int) (*ants.PoolWithFunc, error) {
	if size <= 0 {
		return nil, errors.New("pool size must be greater than 0")
	}
	pool, err := ants.NewPoolWithFunc(size, func(args any) {
		param, ok := args.(*unitParam)
		if !ok {
			panic("unit pool args type error")
		}
		wg := param.wg
		defer func() {
			wg.Done()
			param.reset()
			unitParamPool.Put(param)
		}()
		param.exec.run(param.ctx, param.task)
	})
	if err != nil {
		return nil, fmt.Errorf("create unit pool: %w", err)
	}
	return pool, nil
}
