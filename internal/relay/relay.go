// Package relay runs the forwarding goroutine shared by every watcher.
package relay

import "context"

// Emit delivers one payload. It returns false once the watch is canceled,
// after which the producer must stop.
type Emit func(payload []byte) bool

// Go runs produce in a new goroutine and returns the channel it emits on.
// The channel is closed when produce returns.
func Go(ctx context.Context, produce func(emit Emit)) <-chan []byte {
	out := make(chan []byte)
	go func() {
		defer close(out)
		produce(func(payload []byte) bool {
			select {
			case out <- payload:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	return out
}

// Forward relays every payload from in until it closes or ctx ends.
func Forward(ctx context.Context, in <-chan []byte) <-chan []byte {
	return Go(ctx, func(emit Emit) {
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok || !emit(v) {
					return
				}
			}
		}
	})
}
