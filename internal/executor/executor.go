// Package executor runs gateway operations on a fixed-size worker pool and
// lets callers wait with a timeout. Work dispatched to the pool is never
// cancelled; a caller that stops waiting only stops waiting.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Status is the outcome observed by the caller.
type Status int

const (
	// Completed means the work ran to the end within the wait timeout.
	Completed Status = iota
	// InProgress means the wait timed out while the work keeps running in
	// the background. The caller must not retry the external call.
	InProgress
	// Failed means the work could not be accepted or returned an internal
	// error.
	Failed
)

type job func()

// Executor is a bounded pool of workers draining a job queue.
type Executor struct {
	jobs        chan job
	waitTimeout time.Duration
	logger      zerolog.Logger
	inFlight    prometheus.Gauge
}

// New starts poolSize workers over a queue of queueSize pending jobs.
// inFlight may be nil.
func New(poolSize, queueSize int, waitTimeout time.Duration, logger zerolog.Logger, inFlight prometheus.Gauge) *Executor {
	e := &Executor{
		jobs:        make(chan job, queueSize),
		waitTimeout: waitTimeout,
		logger:      logger,
		inFlight:    inFlight,
	}
	for i := 0; i < poolSize; i++ {
		go e.worker()
	}
	return e
}

func (e *Executor) worker() {
	for j := range e.jobs {
		if e.inFlight != nil {
			e.inFlight.Inc()
		}
		j()
		if e.inFlight != nil {
			e.inFlight.Dec()
		}
	}
}

type outcome struct {
	value any
	err   error
}

// Execute submits fn to the pool and waits up to the configured timeout.
// On timeout (or caller context cancellation) it reports InProgress and the
// work continues in the background.
func (e *Executor) Execute(ctx context.Context, fn func() (any, error)) (Status, any, error) {
	done := make(chan outcome, 1)
	j := func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error().Interface("panic", r).Msg("executor job panicked")
				done <- outcome{err: fmt.Errorf("panic in executor job: %v", r)}
			}
		}()
		v, err := fn()
		done <- outcome{value: v, err: err}
	}

	select {
	case e.jobs <- j:
	default:
		return Failed, nil, fmt.Errorf("executor queue saturated")
	}

	timer := time.NewTimer(e.waitTimeout)
	defer timer.Stop()

	select {
	case o := <-done:
		if o.err != nil {
			return Failed, nil, o.err
		}
		return Completed, o.value, nil
	case <-timer.C:
		return InProgress, nil, nil
	case <-ctx.Done():
		return InProgress, nil, nil
	}
}
