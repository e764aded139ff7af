// Package testing provides test utilities for reflux loops and effects.
package testing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/reflux"
)

// TestConfig is a standard payload type for source tests.
// It implements reflux.Validator.
type TestConfig struct {
	Port    int    `yaml:"port" json:"port"`
	Host    string `yaml:"host" json:"host"`
	Timeout int    `yaml:"timeout" json:"timeout"`
}

// Validate implements reflux.Validator.
func (c TestConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if c.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

// WaitFor polls a condition until it returns true or timeout is reached.
// Returns true if the condition was met, false if timeout occurred.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// Recorder subscribes to a stream and keeps every value it delivers.
type Recorder[T any] struct {
	mu     sync.Mutex
	values []T
	err    error
	done   chan struct{}
	cancel context.CancelFunc
}

// Record subscribes to src in the background. The subscription is canceled
// when the test ends or Stop is called.
func Record[T any](t *testing.T, src reflux.Stream[T]) *Recorder[T] {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := &Recorder[T]{done: make(chan struct{}), cancel: cancel}
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
	t.Cleanup(r.Stop)
	return r
}

// Values returns a copy of the recorded values.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.values))
	copy(out, r.values)
	return out
}

// Last returns the most recent value.
func (r *Recorder[T]) Last() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		var zero T
		return zero, false
	}
	return r.values[len(r.values)-1], true
}

// WaitForLast waits until the most recent value satisfies check.
func (r *Recorder[T]) WaitForLast(t *testing.T, timeout time.Duration, check func(T) bool) bool {
	t.Helper()
	return WaitFor(t, timeout, func() bool {
		v, ok := r.Last()
		return ok && check(v)
	})
}

// Stop cancels the subscription and waits for it to return.
func (r *Recorder[T]) Stop() {
	r.cancel()
	<-r.done
}

// Done is closed when the subscription returns.
func (r *Recorder[T]) Done() <-chan struct{} {
	return r.done
}

// Err returns the subscription's terminal error. Only meaningful after Done.
func (r *Recorder[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// EffectCounter wraps an effect and counts its lifecycle.
type EffectCounter struct {
	started  atomic.Int64
	canceled atomic.Int64
	finished atomic.Int64
}

// Started is the number of effect subscriptions.
func (c *EffectCounter) Started() int64 { return c.started.Load() }

// Canceled is the number of effect subscriptions ended by cancellation.
func (c *EffectCounter) Canceled() int64 { return c.canceled.Load() }

// Finished is the number of effect subscriptions that returned on their own.
func (c *EffectCounter) Finished() int64 { return c.finished.Load() }

// Count returns effect wrapped so every subscription is counted.
func Count[R, E any](c *EffectCounter, effect func(R) reflux.Stream[E]) func(R) reflux.Stream[E] {
	return func(req R) reflux.Stream[E] {
		inner := effect(req)
		return func(ctx context.Context, yield func(E)) error {
			c.started.Add(1)
			err := inner(ctx, yield)
			if ctx.Err() != nil {
				c.canceled.Add(1)
			} else {
				c.finished.Add(1)
			}
			return err
		}
	}
}
