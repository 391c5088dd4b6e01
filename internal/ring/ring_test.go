package ring

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPeekPopFIFO(t *testing.T) {
	r := New(16)
	require.NoError(t, r.TryPush([]byte("hello")))
	require.NoError(t, r.TryPush([]byte(" world")))

	got, err := r.Peek(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
	r.Pop(len(got))
	assert.Equal(t, 0, r.Len())
}

func TestTryPushFailsWhenFull(t *testing.T) {
	r := New(4)
	require.NoError(t, r.TryPush([]byte("abcd")))
	assert.ErrorIs(t, r.TryPush([]byte("e")), ErrRingFull)
}

func TestConcurrentProducerOrderPreserved(t *testing.T) {
	// Single logical producer goroutine pushing distinct runs; consumer must
	// observe them in push order (spec.md §8 invariant 6).
	r := New(1024)
	var wg sync.WaitGroup
	const n = 100
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			require.NoError(t, r.TryPush([]byte{byte(i)}))
		}
	}()
	wg.Wait()

	for i := 0; i < n; i++ {
		got, err := r.Peek(context.Background())
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.Equal(t, byte(i), got[0])
		r.Pop(1)
	}
}

func TestPushBlocksUntilSpaceThenCloseWakesPeek(t *testing.T) {
	r := New(4)
	require.NoError(t, r.TryPush([]byte("abcd")))

	ctx := context.Background()
	done := make(chan error, 1)
	go func() {
		done <- r.Push(ctx, []byte("e"))
	}()

	select {
	case <-done:
		t.Fatal("Push should have blocked while ring is full")
	case <-time.After(20 * time.Millisecond):
	}

	r.Pop(4)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Push did not unblock after space freed")
	}
}

func TestCloseWakesBlockedPeek(t *testing.T) {
	r := New(4)
	done := make(chan []byte, 1)
	go func() {
		got, _ := r.Peek(context.Background())
		done <- got
	}()

	time.Sleep(10 * time.Millisecond)
	r.Close()

	select {
	case got := <-done:
		assert.Empty(t, got)
	case <-time.After(time.Second):
		t.Fatal("Peek did not wake on Close")
	}
	assert.True(t, r.Drained())
}

func TestPeekContextCancellation(t *testing.T) {
	r := New(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Peek(ctx)
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("Peek should have blocked while ring is empty")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Peek did not unblock on context cancellation")
	}
}

func TestPushContextCancellation(t *testing.T) {
	r := New(4)
	require.NoError(t, r.TryPush([]byte("abcd")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Push(ctx, []byte("e")) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Push did not unblock on context cancellation")
	}
}
