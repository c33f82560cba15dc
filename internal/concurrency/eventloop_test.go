package concurrency_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-io/api"
	"github.com/momentics/hioload-io/internal/concurrency"
)

func TestEventLoop_RunPendingIsFIFO(t *testing.T) {
	el := concurrency.NewEventLoop(4, nil)
	var order []int
	for i := 0; i < 10; i++ {
		require.NoError(t, el.Post(func() { order = append(order, i) }))
	}
	assert.Equal(t, 10, el.Pending())
	assert.Equal(t, 10, el.RunPending())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
	assert.Equal(t, int64(10), el.Executed())
}

func TestEventLoop_ConcurrentPostsAllRun(t *testing.T) {
	el := concurrency.NewEventLoop(16, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = el.Run(ctx) }()

	const producers, perProducer = 8, 500
	var (
		wg      sync.WaitGroup
		counter int64 // only touched on the loop goroutine
		done    = make(chan struct{})
	)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, el.Post(func() {
					counter++
					if counter == producers*perProducer {
						close(done)
					}
				}))
			}
		}()
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not execute all posted tasks")
	}
	el.Stop()
}

func TestEventLoop_StopDrainsAndRejects(t *testing.T) {
	el := concurrency.NewEventLoop(1, nil)
	var ran atomic.Int32
	block := make(chan struct{})
	inTask := make(chan struct{})
	require.NoError(t, el.Post(func() {
		close(inTask)
		<-block
	}))
	for i := 0; i < 5; i++ {
		require.NoError(t, el.Post(func() { ran.Add(1) }))
	}

	go func() { _ = el.Run(context.Background()) }()
	<-inTask

	stopped := make(chan struct{})
	go func() {
		el.Stop()
		close(stopped)
	}()
	close(block)

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return")
	}
	assert.Equal(t, int32(5), ran.Load(), "queued tasks run before the loop exits")
	assert.ErrorIs(t, el.Post(func() {}), api.ErrLoopClosed)
}

func TestEventLoop_PanicDoesNotKillLoop(t *testing.T) {
	el := concurrency.NewEventLoop(4, nil)
	var after bool
	require.NoError(t, el.Post(func() { panic("boom") }))
	require.NoError(t, el.Post(func() { after = true }))
	assert.Equal(t, 2, el.RunPending())
	assert.True(t, after)
}

func TestEventLoop_PostNil(t *testing.T) {
	el := concurrency.NewEventLoop(4, nil)
	assert.ErrorIs(t, el.Post(nil), api.ErrInvalidArgument)
}
