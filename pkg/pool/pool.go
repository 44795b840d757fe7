// Package pool runs independent jobs on a bounded number of goroutines and
// collects their results in input order.
//
// A failing job never stops its siblings: every job runs to completion and
// its outcome, value or error, lands in the result slot of its input index.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the number of concurrent jobs when none is given.
const DefaultWorkers = 8

// JobError reports the failure of one job.
type JobError struct {
	Index int
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("pool: job %d: %v", e.Index, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// Result is the outcome of the job at Index.
type Result[T any] struct {
	Index int
	Value T
	Err   *JobError
}

// OK reports whether the job succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Map calls fn for every input with at most workers calls in flight and
// returns one Result per input, in input order. A panic inside fn is
// reported as that job's error; its stack goes to the log.
func Map[In, Out any](ctx context.Context, workers int, inputs []In, fn func(context.Context, In) (Out, error)) []Result[Out] {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	results := make([]Result[Out], len(inputs))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, in := range inputs {
		g.Go(func() error {
			v, err := run(ctx, i, in, fn)
			results[i] = Result[Out]{Index: i, Value: v}
			if err != nil {
				results[i].Err = &JobError{Index: i, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func run[In, Out any](ctx context.Context, index int, in In, fn func(context.Context, In) (Out, error)) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pool: job panicked", "index", index, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, in)
}

// Errors returns the failures among results, in input order.
func Errors[T any](results []Result[T]) []*JobError {
	var errs []*JobError
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}
