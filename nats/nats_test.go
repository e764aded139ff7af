package nats

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/testcontainers/testcontainers-go"
	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"

	"github.com/zoobzio/reflux"
)

func setupNATS(t *testing.T) (*nats.Conn, jetstream.KeyValue) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := tcnats.Run(ctx, "nats:2.10-alpine", tcnats.WithArgument("--jetstream"))
	if err != nil {
		t.Fatalf("failed to start nats container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	nc, err := nats.Connect(endpoint)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kv, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: "reflux"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return nc, kv
}

func receive(t *testing.T, ch <-chan []byte) string {
	t.Helper()
	select {
	case data, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return string(data)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for value")
		return ""
	}
}

func expect(t *testing.T, ch <-chan []byte, want string) {
	t.Helper()
	if got := receive(t, ch); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

// eventually polls condition until it holds or timeout elapses.
func eventually(timeout, interval time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
	}
	return false
}

func TestWatcher_KeyLifecycle(t *testing.T) {
	_, kv := setupNATS(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := kv.Put(ctx, "limits", []byte("1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ch, err := New(kv, "limits").Watch(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expect(t, ch, "1")

	if err := kv.Delete(ctx, "limits"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = kv.Put(ctx, "limits", []byte("2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Deletes are not emitted.
	expect(t, ch, "2")
}

func TestWatcher_CancelClosesChannel(t *testing.T) {
	_, kv := setupNATS(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := New(kv, "none").Watch(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cancel()

	if !eventually(5*time.Second, 10*time.Millisecond, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}) {
		t.Fatal("channel not closed after cancel")
	}
}

func TestSubjectWatcher(t *testing.T) {
	nc, _ := setupNATS(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ch, err := NewSubject(nc, "updates", WithBuffer(4)).Watch(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := nc.Publish("updates", []byte("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := nc.Publish("updates", []byte("b")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expect(t, ch, "a")
	expect(t, ch, "b")
}

type delta struct {
	N int `json:"n" validate:"ne=0"`
}

func TestSubjectWatcher_FeedsSystem(t *testing.T) {
	nc, _ := setupNATS(t)

	sys := reflux.New(0, func(s int, d delta) int { return s + d.N })
	states := sys.Run(reflux.Watch[int](NewSubject(nc, "deltas"), reflux.JSONCodec{}, func(d delta) delta {
		return d
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	total := make(chan int, 16)
	go func() {
		_ = states(ctx, func(s int) {
			select {
			case total <- s:
			default:
			}
		})
	}()
	if s := <-total; s != 0 {
		t.Fatalf("expected initial total 0, got %d", s)
	}

	// The feedback subscribes asynchronously; publish until a delta lands.
	if !eventually(10*time.Second, 50*time.Millisecond, func() bool {
		_ = nc.Publish("deltas", []byte(`{"n": 0}`))
		_ = nc.Publish("deltas", []byte(`{"n": 2}`))
		select {
		case s := <-total:
			return s > 0 && s%2 == 0
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}) {
		t.Fatal("expected published deltas to be reduced")
	}
	if sys.LastError() == nil {
		t.Error("expected the zero delta to be rejected")
	}
}
