package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Submit(t *testing.T) {
	p, err := NewPool("test", DefaultPool, &Config{Capacity: 10, ExpiryDuration: time.Second})
	require.NoError(t, err)
	defer p.Release(time.Second)

	var counter atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int32(100), counter.Load())
	assert.Equal(t, int64(100), p.Stats().Submitted)
}

func TestPool_SubmitWithCanceledContext(t *testing.T) {
	p, err := NewPool("test", DefaultPool, nil)
	require.NoError(t, err)
	defer p.Release(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.SubmitWithContext(ctx, func() {}), context.Canceled)
}

func TestPool_GoFallsBackWhenOverloaded(t *testing.T) {
	p, err := NewPool("bg", BackgroundPool, BackgroundPoolConfig(1))
	require.NoError(t, err)
	defer p.Release(time.Second)

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(func() {
		close(started)
		<-block
	}))
	<-started

	done := make(chan struct{})
	p.Go(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fallback task did not run")
	}
	close(block)
	assert.Equal(t, int64(1), p.Stats().Fallback)
	assert.Equal(t, int64(1), p.Stats().Rejected)
}

func TestPool_SubmitAfterRelease(t *testing.T) {
	p, err := NewPool("test", DefaultPool, nil)
	require.NoError(t, err)
	require.NoError(t, p.Release(0))

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)

	ran := make(chan struct{})
	p.Go(func() { close(ran) })
	<-ran
}

func TestManager(t *testing.T) {
	m := NewManager()
	_, err := m.Register("facts", BackgroundPool, BackgroundPoolConfig(2))
	require.NoError(t, err)

	_, err = m.Register("facts", BackgroundPool, nil)
	assert.ErrorIs(t, err, ErrPoolAlreadyExists)

	p, err := m.Get("facts")
	require.NoError(t, err)
	assert.Equal(t, "facts", p.Name())
	assert.Equal(t, []string{"facts"}, m.List())
	assert.Contains(t, m.Stats(), "facts")

	require.NoError(t, m.ReleaseAll(time.Second))
	_, err = m.Get("facts")
	assert.ErrorIs(t, err, ErrPoolNotFound)
}
