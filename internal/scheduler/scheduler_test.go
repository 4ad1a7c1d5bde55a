package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_RunPendingPreservesOrder(t *testing.T) {
	q := NewQueue()
	var got []int
	for i := 0; i < 3; i++ {
		i := i
		q.Post(func() { got = append(got, i) })
	}

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 3, q.RunPending())
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_NestedPostsWaitForNextPass(t *testing.T) {
	q := NewQueue()
	var got []string
	q.Post(func() {
		got = append(got, "outer")
		q.Post(func() { got = append(got, "inner") })
	})

	assert.Equal(t, 1, q.RunPending())
	assert.Equal(t, []string{"outer"}, got)
	assert.Equal(t, 1, q.Len())

	assert.Equal(t, 1, q.Flush())
	assert.Equal(t, []string{"outer", "inner"}, got)
}

func TestLoop_DoRunsOnLoopAndDeferredWorkFollows(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var mu sync.Mutex
	var order []string
	deferredDone := make(chan struct{})

	err := l.Do(ctx, func() {
		mu.Lock()
		order = append(order, "task")
		mu.Unlock()
		l.Post(func() {
			mu.Lock()
			order = append(order, "deferred")
			mu.Unlock()
			close(deferredDone)
		})
	})
	require.NoError(t, err)

	select {
	case <-deferredDone:
	case <-time.After(time.Second):
		t.Fatal("deferred task never ran")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"task", "deferred"}, order)
}

func TestLoop_DoAfterStop(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	cancel()
	<-l.Done()

	err := l.Do(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrStopped)
}
