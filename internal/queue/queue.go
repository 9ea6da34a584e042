// Package queue holds pending state-transition work: a ready-time-ordered
// queue of tasks, each representing "emit event(s) for this status change".
package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultBaseDelay is how long a freshly enqueued task waits before its first
// attempt.
const DefaultBaseDelay = 100 * time.Millisecond

// DefaultMaxAttempts bounds how many times one logical task is attempted.
const DefaultMaxAttempts = 10

// TaskKind tags which domain event(s) a task should produce.
type TaskKind string

const (
	KindPaymentCreated         TaskKind = "payment_created"
	KindPaymentStateTransition TaskKind = "payment_state_transition"
	KindRefundStateTransition  TaskKind = "refund_state_transition"
)

// Task is one pending unit of event work.
type Task struct {
	SubjectExternalID string
	Kind              TaskKind
	Attempts          int
	ReadyAt           time.Time
}

// NewTask schedules a first attempt at now + delay.
func NewTask(subjectExternalID string, kind TaskKind, delay time.Duration) Task {
	return Task{
		SubjectExternalID: subjectExternalID,
		Kind:              kind,
		Attempts:          1,
		ReadyAt:           time.Now().Add(delay),
	}
}

// Next returns the successor task for a failed attempt: same subject and
// kind, attempts incremented, rescheduled at now + delay.
func (t Task) Next(delay time.Duration) Task {
	return Task{
		SubjectExternalID: t.SubjectExternalID,
		Kind:              t.Kind,
		Attempts:          t.Attempts + 1,
		ReadyAt:           time.Now().Add(delay),
	}
}

// Exhausted reports whether the attempts budget has run out.
func (t Task) Exhausted(maxAttempts int) bool {
	return t.Attempts > maxAttempts
}

type taskHeap []Task

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return h[i].ReadyAt.Before(h[j].ReadyAt) }
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)        { *h = append(*h, x.(Task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}

// Queue is a delay-ordered task queue: ready time, not insertion order,
// determines consumption order. Safe for concurrent producers and a single
// consumer.
type Queue struct {
	mu     sync.Mutex
	tasks  taskHeap
	notify chan struct{}
	depth  prometheus.Gauge
}

// NewQueue creates an empty queue. depth may be nil.
func NewQueue(depth prometheus.Gauge) *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
		depth:  depth,
	}
}

// Offer adds a task.
func (q *Queue) Offer(t Task) {
	q.mu.Lock()
	heap.Push(&q.tasks, t)
	if q.depth != nil {
		q.depth.Set(float64(len(q.tasks)))
	}
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Poll blocks until a task's ready time has passed and returns it, or until
// ctx is done.
func (q *Queue) Poll(ctx context.Context) (Task, error) {
	for {
		q.mu.Lock()
		var wait time.Duration
		if len(q.tasks) > 0 {
			now := time.Now()
			if !q.tasks[0].ReadyAt.After(now) {
				t := heap.Pop(&q.tasks).(Task)
				if q.depth != nil {
					q.depth.Set(float64(len(q.tasks)))
				}
				q.mu.Unlock()
				return t, nil
			}
			wait = q.tasks[0].ReadyAt.Sub(now)
		}
		q.mu.Unlock()

		if wait <= 0 {
			// Nothing queued: wait for an Offer.
			select {
			case <-q.notify:
			case <-ctx.Done():
				return Task{}, ctx.Err()
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-q.notify:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
			return Task{}, ctx.Err()
		}
	}
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
