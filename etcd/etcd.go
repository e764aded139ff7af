// Package etcd provides a reflux.Watcher for etcd keys.
package etcd

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/zoobzio/reflux/internal/relay"
)

// Watcher emits the value of an etcd key, or of every key under a prefix,
// each time it is put. Deletes are not emitted.
type Watcher struct {
	client *clientv3.Client
	key    string
	prefix bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPrefix treats the key as a prefix. Current values are emitted in key
// order, then every put under the prefix.
func WithPrefix() Option {
	return func(w *Watcher) {
		w.prefix = true
	}
}

// New creates a Watcher for key.
func New(client *clientv3.Client, key string, opts ...Option) *Watcher {
	w := &Watcher{client: client, key: key}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch reads the current value and then follows the key's revisions, so no
// put between the read and the watch is missed.
func (w *Watcher) Watch(ctx context.Context) (<-chan []byte, error) {
	var opts []clientv3.OpOption
	if w.prefix {
		opts = append(opts, clientv3.WithPrefix())
	}

	resp, err := w.client.Get(ctx, w.key, append(opts, clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))...)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", w.key, err)
	}

	return relay.Go(ctx, func(emit relay.Emit) {
		for _, kv := range resp.Kvs {
			if !emit(kv.Value) {
				return
			}
		}

		// The watch is canceled with ctx.
		updates := w.client.Watch(ctx, w.key, append(opts, clientv3.WithRev(resp.Header.Revision+1))...)
		for {
			select {
			case <-ctx.Done():
				return
			case wr, ok := <-updates:
				if !ok {
					return
				}
				if wr.Err() != nil {
					continue
				}
				for _, ev := range wr.Events {
					if ev.Type != clientv3.EventTypePut {
						continue
					}
					if !emit(ev.Kv.Value) {
						return
					}
				}
			}
		}
	}), nil
}
