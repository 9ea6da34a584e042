package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteCompleted(t *testing.T) {
	e := New(2, 10, time.Second, zerolog.Nop(), nil)

	status, value, err := e.Execute(context.Background(), func() (any, error) {
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, Completed, status)
	assert.Equal(t, "done", value)
}

func TestExecuteFailed(t *testing.T) {
	e := New(1, 10, time.Second, zerolog.Nop(), nil)

	boom := errors.New("gateway exploded")
	status, _, err := e.Execute(context.Background(), func() (any, error) {
		return nil, boom
	})
	assert.Equal(t, Failed, status)
	assert.ErrorIs(t, err, boom)
}

func TestExecuteInProgressOnSlowWork(t *testing.T) {
	e := New(1, 10, 10*time.Millisecond, zerolog.Nop(), nil)

	release := make(chan struct{})
	ran := make(chan struct{})
	status, _, err := e.Execute(context.Background(), func() (any, error) {
		<-release
		close(ran)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, InProgress, status)

	// The work keeps running after the caller stopped waiting.
	close(release)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("background work never finished")
	}
}

func TestExecuteInProgressOnCancelledContext(t *testing.T) {
	e := New(1, 10, time.Minute, zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, _, err := e.Execute(ctx, func() (any, error) {
		time.Sleep(50 * time.Millisecond)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, InProgress, status)
}

func TestExecuteFailedWhenQueueSaturated(t *testing.T) {
	e := New(1, 1, 10*time.Millisecond, zerolog.Nop(), nil)

	block := make(chan struct{})
	defer close(block)

	// Occupy the single worker and fill the single queue slot.
	e.Execute(context.Background(), func() (any, error) { <-block; return nil, nil })
	e.Execute(context.Background(), func() (any, error) { <-block; return nil, nil })

	status, _, err := e.Execute(context.Background(), func() (any, error) { return nil, nil })
	assert.Equal(t, Failed, status)
	assert.Error(t, err)
}

func TestExecuteRecoversPanic(t *testing.T) {
	e := New(1, 10, time.Second, zerolog.Nop(), nil)

	status, _, err := e.Execute(context.Background(), func() (any, error) {
		panic("bad adapter")
	})
	assert.Equal(t, Failed, status)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad adapter")

	// The worker survived the panic and keeps accepting jobs.
	status, _, err = e.Execute(context.Background(), func() (any, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, Completed, status)
}
