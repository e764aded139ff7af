package reflux

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/reflux/internal/relay"
	"gopkg.in/yaml.v3"
)

// Watcher observes an external source and emits raw payloads on a channel.
// Implementations emit the current value immediately upon Watch so a loop
// receives the source's state as soon as it starts.
type Watcher interface {
	// Watch begins observing the source and returns a channel that emits
	// raw bytes when changes occur. The channel is closed when ctx is
	// canceled or an unrecoverable error occurs.
	Watch(ctx context.Context) (<-chan []byte, error)
}

// Validator is implemented by decoded payloads that check their own
// invariants beyond struct tags.
type Validator interface {
	Validate() error
}

// Codec decodes raw source payloads.
type Codec interface {
	Unmarshal(data []byte, v any) error

	// ContentType names the format in signals and faults.
	ContentType() string
}

// JSONCodec decodes JSON payloads.
type JSONCodec struct{}

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) ContentType() string                { return "application/json" }

// YAMLCodec decodes YAML payloads with gopkg.in/yaml.v3.
type YAMLCodec struct{}

func (YAMLCodec) Unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }
func (YAMLCodec) ContentType() string                { return "application/x-yaml" }

// ChannelWatcher adapts a byte channel into a Watcher. Every Watch reads
// from the same channel.
type ChannelWatcher struct {
	ch <-chan []byte
}

// NewChannelWatcher creates a ChannelWatcher forwarding values from ch.
func NewChannelWatcher(ch <-chan []byte) *ChannelWatcher {
	return &ChannelWatcher{ch: ch}
}

// Watch forwards values until the wrapped channel closes or ctx is canceled.
func (w *ChannelWatcher) Watch(ctx context.Context) (<-chan []byte, error) {
	return relay.Forward(ctx, w.ch), nil
}

var validate = validator.New()

// Decode streams the payloads of w decoded with codec (JSON when nil).
//
// Struct payloads are checked against their `validate` tags, and payloads
// implementing Validator are checked with Validate. A payload that fails to
// decode or validate is dropped: the failure is recorded as a source fault
// and signalled, and the stream keeps watching. The stream completes when
// the watcher's channel closes.
func Decode[T any](w Watcher, codec Codec) Stream[T] {
	if codec == nil {
		codec = JSONCodec{}
	}
	return func(ctx context.Context, yield func(T)) error {
		changes, err := w.Watch(ctx)
		if err != nil {
			return fmt.Errorf("watch failed: %w", err)
		}
		p := probeFrom(ctx)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case raw, ok := <-changes:
				if !ok {
					return nil
				}
				v, err := decode[T](raw, codec)
				if err != nil {
					p.record(Fault{Origin: OriginSource, Feedback: feedbackFrom(ctx), Err: err})
					capitan.Emit(ctx, SourceDecodeFailed,
						KeyOrigin.Field(OriginSource.String()),
						KeyContentType.Field(codec.ContentType()),
						KeyError.Field(err.Error()),
					)
					continue
				}
				yield(v)
			}
		}
	}
}

// Watch returns a feedback turning every accepted payload of w into an event.
func Watch[S, E, T any](w Watcher, codec Codec, toEvent func(T) E) Feedback[S, E] {
	return Source[S](Map(Decode[T](w, codec), toEvent))
}

func decode[T any](raw []byte, codec Codec) (T, error) {
	var v T
	if err := codec.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("unmarshal failed: %w", err)
	}
	if isStruct(v) {
		if err := validate.Struct(v); err != nil {
			return v, fmt.Errorf("validation failed: %w", err)
		}
	}
	if vv, ok := any(v).(Validator); ok && !isNilPointer(v) {
		if err := vv.Validate(); err != nil {
			return v, fmt.Errorf("validation failed: %w", err)
		}
	}
	return v, nil
}

// isStruct reports whether v is a struct or a non-nil pointer to one.
func isStruct(v any) bool {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Struct
}

// isNilPointer reports whether v is a nil pointer, such as a JSON null
// decoded into a pointer type.
func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
