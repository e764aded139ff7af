package reflux

import (
	"context"
	"time"

	"github.com/zoobzio/clockz"
)

// Debounce emits the latest value of src once no new value has arrived for d.
//
// Values arriving within d of each other are coalesced into the last one.
// When src ends, a value still waiting on the timer is emitted before the
// stream returns.
func Debounce[T any](src Stream[T], clock clockz.Clock, d time.Duration) Stream[T] {
	return func(ctx context.Context, yield func(T)) error {
		sctx, cancel := context.WithCancel(ctx)
		defer cancel()

		values := newMailbox[T]()
		done := make(chan error, 1)
		go func() {
			done <- subscribe(sctx, src, values.push)
		}()

		var (
			timer      clockz.Timer
			pending    T
			hasPending bool
		)
		latest := func() {
			for {
				v, ok := values.pop()
				if !ok {
					return
				}
				pending = v
				hasPending = true
			}
		}
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			var timerC <-chan time.Time
			if timer != nil {
				timerC = timer.C()
			}

			select {
			case <-ctx.Done():
				return ctx.Err()

			case err := <-done:
				latest()
				if hasPending {
					yield(pending)
				}
				return err

			case <-values.ready:
				latest()
				if !hasPending {
					continue
				}
				// A fresh timer per burst; fired timers are not reused.
				if timer != nil {
					timer.Stop()
				}
				timer = clock.NewTimer(d)

			case <-timerC:
				timer = nil
				if hasPending {
					yield(pending)
					hasPending = false
				}
			}
		}
	}
}
