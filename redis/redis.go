// Package redis provides reflux.Watcher implementations backed by Redis:
// a key watcher using keyspace notifications and a pub/sub channel watcher.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/zoobzio/reflux/internal/relay"
)

// Watcher watches a Redis key for changes using keyspace notifications.
// Requires Redis to have keyspace notifications enabled:
//
//	CONFIG SET notify-keyspace-events KEA
type Watcher struct {
	client *redis.Client
	key    string
	db     int
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDB sets the database index used in the keyspace channel. Default: 0.
func WithDB(db int) Option {
	return func(w *Watcher) {
		w.db = db
	}
}

// New creates a Watcher for the given key.
func New(client *redis.Client, key string, opts ...Option) *Watcher {
	w := &Watcher{
		client: client,
		key:    key,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch begins watching the key and returns a channel that emits its value
// whenever it is set. The current value, if any, is emitted immediately.
func (w *Watcher) Watch(ctx context.Context) (<-chan []byte, error) {
	channel := fmt.Sprintf("__keyspace@%d__:%s", w.db, w.key)
	pubsub := w.client.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to keyspace notifications: %w", err)
	}

	return relay.Go(ctx, func(emit relay.Emit) {
		defer pubsub.Close()

		if val, ok := w.get(ctx); ok && !emit(val) {
			return
		}

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if !writes[msg.Payload] {
					continue
				}
				if val, ok := w.get(ctx); ok && !emit(val) {
					return
				}
			}
		}
	}), nil
}

// writes are the keyspace events that leave a new value at the key.
var writes = map[string]bool{
	"set": true, "mset": true, "setex": true, "psetex": true, "setnx": true,
}

// get reads the key. A missing key or a failed read reports false.
func (w *Watcher) get(ctx context.Context) ([]byte, bool) {
	val, err := w.client.Get(ctx, w.key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

// ChannelWatcher emits every message published on a Redis pub/sub channel.
// Unlike Watcher it has no current value; nothing is emitted until the first
// publish after Watch returns.
type ChannelWatcher struct {
	client  *redis.Client
	channel string
}

// NewChannel creates a ChannelWatcher for the given pub/sub channel.
func NewChannel(client *redis.Client, channel string) *ChannelWatcher {
	return &ChannelWatcher{client: client, channel: channel}
}

// Watch subscribes to the channel and emits message payloads.
func (w *ChannelWatcher) Watch(ctx context.Context) (<-chan []byte, error) {
	pubsub := w.client.Subscribe(ctx, w.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", w.channel, err)
	}

	return relay.Go(ctx, func(emit relay.Emit) {
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok || !emit([]byte(msg.Payload)) {
					return
				}
			}
		}
	}), nil
}
