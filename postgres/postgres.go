// Package postgres provides a reflux.Watcher backed by PostgreSQL
// LISTEN/NOTIFY.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zoobzio/reflux/internal/relay"
)

// Watcher watches one row of a key/value table. A trigger on the table
// notifies a channel with the key of every changed row, and the watcher
// re-reads its row when its key is announced.
//
// Example trigger:
//
//	CREATE OR REPLACE FUNCTION notify_settings() RETURNS trigger AS $$
//	BEGIN
//	    PERFORM pg_notify('settings_changed', NEW.key);
//	    RETURN NEW;
//	END;
//	$$ LANGUAGE plpgsql;
//
//	CREATE TRIGGER settings_changed
//	    AFTER INSERT OR UPDATE ON settings
//	    FOR EACH ROW EXECUTE FUNCTION notify_settings();
//
// With WithPayload the notification payload itself is the value and no
// table is read.
type Watcher struct {
	pool    *pgxpool.Pool
	channel string
	key     string
	table   string
	payload bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithTable sets the table holding key and value columns. Default: "settings".
func WithTable(table string) Option {
	return func(w *Watcher) {
		w.table = table
	}
}

// WithPayload emits notification payloads as values instead of reading the
// table. Every notification on the channel is emitted and key is ignored.
func WithPayload() Option {
	return func(w *Watcher) {
		w.payload = true
	}
}

// New creates a Watcher listening on channel for changes to key.
func New(pool *pgxpool.Pool, channel, key string, opts ...Option) *Watcher {
	w := &Watcher{
		pool:    pool,
		channel: channel,
		key:     key,
		table:   "settings",
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch holds a pooled connection listening on the channel until ctx ends.
// In table mode the row's current value is emitted first.
func (w *Watcher) Watch(ctx context.Context) (<-chan []byte, error) {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	listen := "LISTEN " + pgx.Identifier{w.channel}.Sanitize()
	if _, err := conn.Exec(ctx, listen); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen on %s: %w", w.channel, err)
	}

	// The connection stays subscribed to the channel, so it is taken out of
	// the pool and closed when the watch ends.
	listener := conn.Hijack()

	return relay.Go(ctx, func(emit relay.Emit) {
		defer listener.Close(context.WithoutCancel(ctx)) //nolint:errcheck // best effort

		if !w.payload {
			if v, ok := w.read(ctx); ok && !emit(v) {
				return
			}
		}

		for {
			n, err := listener.WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() != nil || listener.IsClosed() {
					return
				}
				continue
			}

			if w.payload {
				if !emit([]byte(n.Payload)) {
					return
				}
				continue
			}
			if n.Payload != w.key {
				continue
			}
			if v, ok := w.read(ctx); ok && !emit(v) {
				return
			}
		}
	}), nil
}

// read fetches the row's value. A missing row reports false.
func (w *Watcher) read(ctx context.Context) ([]byte, bool) {
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = $1", pgx.Identifier{w.table}.Sanitize())
	var v []byte
	if err := w.pool.QueryRow(ctx, query, w.key).Scan(&v); err != nil {
		return nil, false
	}
	return v, true
}
