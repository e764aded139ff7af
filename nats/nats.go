// Package nats provides reflux.Watcher implementations backed by NATS: a
// JetStream key/value watcher and a core subject subscriber.
package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/zoobzio/reflux/internal/relay"
)

// Watcher emits the value of a JetStream KV key each time it is put.
// Deletes and purges are not emitted.
type Watcher struct {
	kv  jetstream.KeyValue
	key string
}

// New creates a Watcher for key in kv. Wildcard keys such as "flags.>"
// watch every matching key.
func New(kv jetstream.KeyValue, key string) *Watcher {
	return &Watcher{kv: kv, key: key}
}

// Watch emits the current value of every matching key, then each update.
func (w *Watcher) Watch(ctx context.Context) (<-chan []byte, error) {
	kw, err := w.kv.Watch(ctx, w.key)
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", w.key, err)
	}

	return relay.Go(ctx, func(emit relay.Emit) {
		defer kw.Stop() //nolint:errcheck // best effort

		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-kw.Updates():
				if !ok {
					return
				}
				// nil marks the end of the current values.
				if entry == nil {
					continue
				}
				if op := entry.Operation(); op == jetstream.KeyValueDelete || op == jetstream.KeyValuePurge {
					continue
				}
				if !emit(entry.Value()) {
					return
				}
			}
		}
	}), nil
}

// SubjectWatcher emits the data of every message published on a subject.
// There is no current value; nothing is emitted until the first publish
// after Watch returns.
type SubjectWatcher struct {
	conn    *nats.Conn
	subject string
	buffer  int
}

// SubjectOption configures a SubjectWatcher.
type SubjectOption func(*SubjectWatcher)

// WithBuffer sets how many messages may queue before the subscription
// reports a slow consumer and drops. Default: 64.
func WithBuffer(n int) SubjectOption {
	return func(w *SubjectWatcher) {
		w.buffer = n
	}
}

// NewSubject creates a SubjectWatcher for subject.
func NewSubject(conn *nats.Conn, subject string, opts ...SubjectOption) *SubjectWatcher {
	w := &SubjectWatcher{conn: conn, subject: subject, buffer: 64}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch subscribes to the subject until ctx ends.
func (w *SubjectWatcher) Watch(ctx context.Context) (<-chan []byte, error) {
	msgs := make(chan *nats.Msg, w.buffer)
	sub, err := w.conn.ChanSubscribe(w.subject, msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", w.subject, err)
	}
	if err := w.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", w.subject, err)
	}

	return relay.Go(ctx, func(emit relay.Emit) {
		defer sub.Unsubscribe() //nolint:errcheck // best effort

		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-msgs:
				if !emit(msg.Data) {
					return
				}
			}
		}
	}), nil
}
