package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollOrdersByReadyTime(t *testing.T) {
	q := NewQueue(nil)

	now := time.Now()
	q.Offer(Task{SubjectExternalID: "late", Kind: KindPaymentStateTransition, Attempts: 1, ReadyAt: now.Add(30 * time.Millisecond)})
	q.Offer(Task{SubjectExternalID: "early", Kind: KindPaymentStateTransition, Attempts: 1, ReadyAt: now})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, err := q.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "early", first.SubjectExternalID)

	second, err := q.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "late", second.SubjectExternalID)
	assert.Equal(t, 0, q.Len())
}

func TestPollWaitsForDelay(t *testing.T) {
	q := NewQueue(nil)
	q.Offer(NewTask("charge-1", KindPaymentCreated, 20*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	task, err := q.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "charge-1", task.SubjectExternalID)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPollUnblocksOnOffer(t *testing.T) {
	q := NewQueue(nil)

	got := make(chan Task, 1)
	go func() {
		task, err := q.Poll(context.Background())
		if err == nil {
			got <- task
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Offer(NewTask("charge-2", KindRefundStateTransition, 0))

	select {
	case task := <-got:
		assert.Equal(t, "charge-2", task.SubjectExternalID)
	case <-time.After(time.Second):
		t.Fatal("poll never returned after offer")
	}
}

func TestPollReturnsOnContextDone(t *testing.T) {
	q := NewQueue(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Poll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTaskNext(t *testing.T) {
	task := NewTask("charge-3", KindPaymentStateTransition, 0)
	assert.Equal(t, 1, task.Attempts)

	next := task.Next(50 * time.Millisecond)
	assert.Equal(t, "charge-3", next.SubjectExternalID)
	assert.Equal(t, task.Kind, next.Kind)
	assert.Equal(t, 2, next.Attempts)
	assert.True(t, next.ReadyAt.After(task.ReadyAt))
}

func TestTaskExhausted(t *testing.T) {
	task := Task{Attempts: 10}
	assert.False(t, task.Exhausted(10))
	assert.True(t, Task{Attempts: 11}.Exhausted(10))
}
