package threadpool

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnqueueResolvesResult(t *testing.T) {
	p := New(4)
	defer p.Close()

	h := p.Enqueue(func() (any, error) { return 42, nil })
	v, err := h.Wait()
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestEnqueueSurfacesTaskError(t *testing.T) {
	p := New(2)
	defer p.Close()

	wantErr := errors.New("boom")
	h := p.Enqueue(func() (any, error) { return nil, wantErr })
	_, err := h.Wait()
	require.ErrorIs(t, err, wantErr)
}

func TestWaitAllFailsIfAnyTaskFails(t *testing.T) {
	p := New(4)
	defer p.Close()

	var handles []*Handle
	for i := 0; i < 8; i++ {
		i := i
		handles = append(handles, p.Enqueue(func() (any, error) {
			if i == 3 {
				return nil, errors.New("shard failed")
			}
			return i, nil
		}))
	}

	require.False(t, WaitAll(handles))
}

func TestWaitAllSucceedsWhenAllTasksSucceed(t *testing.T) {
	p := New(4)
	defer p.Close()

	var handles []*Handle
	for i := 0; i < 16; i++ {
		handles = append(handles, p.Enqueue(func() (any, error) { return nil, nil }))
	}

	require.True(t, WaitAll(handles))
}

func TestTaskOrderStartsFIFO(t *testing.T) {
	// Single worker: tasks must start in enqueue order even though
	// completion order is otherwise unconstrained.
	p := New(1)
	defer p.Close()

	var order []int
	var handles []*Handle
	for i := 0; i < 5; i++ {
		i := i
		handles = append(handles, p.Enqueue(func() (any, error) {
			order = append(order, i)
			return nil, nil
		}))
	}
	WaitAll(handles)
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPanicIsCapturedAsFault(t *testing.T) {
	p := New(2)
	defer p.Close()

	h := p.Enqueue(func() (any, error) { panic("kaboom") })
	_, err := h.Wait()
	require.Error(t, err)

	// The worker must keep running after a panic.
	h2 := p.Enqueue(func() (any, error) { return "alive", nil })
	v, err := h2.Wait()
	require.NoError(t, err)
	require.Equal(t, "alive", v)
}

func TestCloseJoinsEveryWorkerWithoutAbandoningQueuedTasks(t *testing.T) {
	p := New(4)

	var completed atomic.Int64
	var handles []*Handle
	for i := 0; i < 64; i++ {
		handles = append(handles, p.Enqueue(func() (any, error) {
			completed.Add(1)
			return nil, nil
		}))
	}

	require.NoError(t, p.Close())
	require.True(t, WaitAll(handles))
	require.EqualValues(t, 64, completed.Load())
}

func TestGoIsFireAndForget(t *testing.T) {
	p := New(2)
	defer p.Close()

	done := make(chan struct{})
	p.Go(func() (any, error) {
		close(done)
		return nil, nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fire-and-forget task never ran")
	}
}

func TestNumThreads(t *testing.T) {
	p := New(6)
	defer p.Close()
	require.Equal(t, 6, p.NumThreads())
}
