package reflux

import (
	"context"
	"sync"
	"testing"
	"time"
)

// waitFor polls a condition until it returns true or timeout is reached.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// recorder subscribes to a stream in the background and keeps its values.
type recorder[T any] struct {
	mu     sync.Mutex
	values []T
	err    error
	done   chan struct{}
	cancel context.CancelFunc
}

func record[T any](t *testing.T, src Stream[T]) *recorder[T] {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := &recorder[T]{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(r.done)
		err := src(ctx, func(v T) {
			r.mu.Lock()
			r.values = append(r.values, v)
			r.mu.Unlock()
		})
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
	}()
	t.Cleanup(r.stop)
	return r
}

func (r *recorder[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.values))
	copy(out, r.values)
	return out
}

func (r *recorder[T]) last() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		var zero T
		return zero, false
	}
	return r.values[len(r.values)-1], true
}

func (r *recorder[T]) waitLast(t *testing.T, check func(T) bool) bool {
	t.Helper()
	return waitFor(t, 2*time.Second, func() bool {
		v, ok := r.last()
		return ok && check(v)
	})
}

func (r *recorder[T]) waitDone(t *testing.T) error {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for stream to return")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *recorder[T]) stop() {
	r.cancel()
	<-r.done
}

func equalSlices[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
