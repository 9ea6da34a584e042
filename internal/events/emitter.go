package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohbadar/pay-connector/internal/infrastructure/observability"
	"github.com/mohbadar/pay-connector/internal/queue"
)

// Emitter is the single consumer of the state-transition queue. It turns
// tasks into domain events and hands them to the publisher, requeueing a
// successor on failure until the attempts budget runs out.
type Emitter struct {
	queue       *queue.Queue
	factory     *Factory
	publisher   Publisher
	logger      zerolog.Logger
	metrics     *observability.Metrics
	baseDelay   time.Duration
	maxAttempts int
}

func NewEmitter(q *queue.Queue, factory *Factory, publisher Publisher, logger zerolog.Logger, metrics *observability.Metrics, baseDelay time.Duration, maxAttempts int) *Emitter {
	if baseDelay <= 0 {
		baseDelay = queue.DefaultBaseDelay
	}
	if maxAttempts <= 0 {
		maxAttempts = queue.DefaultMaxAttempts
	}
	return &Emitter{
		queue:       q,
		factory:     factory,
		publisher:   publisher,
		logger:      logger,
		metrics:     metrics,
		baseDelay:   baseDelay,
		maxAttempts: maxAttempts,
	}
}

// Run drains the queue until ctx is done.
func (e *Emitter) Run(ctx context.Context) error {
	for {
		task, err := e.queue.Poll(ctx)
		if err != nil {
			return err
		}
		e.Process(ctx, task)
	}
}

// Process handles a single task: dropped if exhausted, otherwise attempted
// and requeued on failure.
func (e *Emitter) Process(ctx context.Context, task queue.Task) {
	if task.Exhausted(e.maxAttempts) {
		e.logger.Error().
			Str("subject_external_id", task.SubjectExternalID).
			Str("kind", string(task.Kind)).
			Int("attempts", task.Attempts).
			Msg("state transition failed to process beyond max attempts, dropping")
		if e.metrics != nil {
			e.metrics.TasksDroppedTotal.WithLabelValues(string(task.Kind)).Inc()
		}
		return
	}

	evts, err := e.factory.Create(ctx, task)
	if err != nil {
		e.requeue(task, err)
		return
	}

	for _, evt := range evts {
		if err := e.publisher.Emit(ctx, evt); err != nil {
			e.requeue(task, err)
			return
		}
		if e.metrics != nil {
			e.metrics.EventsPublishedTotal.WithLabelValues(evt.EventType).Inc()
		}
	}

	if e.metrics != nil {
		e.metrics.TaskAttemptsTotal.WithLabelValues(string(task.Kind), "emitted").Inc()
	}
	e.logger.Info().
		Str("subject_external_id", task.SubjectExternalID).
		Str("kind", string(task.Kind)).
		Msg("emitted state transition events")
}

func (e *Emitter) requeue(task queue.Task, cause error) {
	e.logger.Warn().
		Str("subject_external_id", task.SubjectExternalID).
		Str("kind", string(task.Kind)).
		Int("attempts", task.Attempts).
		Err(cause).
		Msg("failed to emit state transition events, requeueing")
	if e.metrics != nil {
		e.metrics.TaskAttemptsTotal.WithLabelValues(string(task.Kind), "requeued").Inc()
	}
	e.queue.Offer(task.Next(e.baseDelay))
}
