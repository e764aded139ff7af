// Package logging writes reflux signals to a structured logiface logger.
//
//	logger := logiface.New[*Event](...)
//	logging.Hook(logger)
//
// Lifecycle signals are logged at informational level, contained faults at
// warning level and reducer panics at error level. Every reduced event is
// logged at trace level.
package logging

import (
	"context"

	"github.com/joeycumines/logiface"
	"github.com/zoobzio/capitan"

	"github.com/zoobzio/reflux"
)

// route describes how one signal is logged.
type route struct {
	signal  capitan.Signal
	level   logiface.Level
	message string
}

var routes = []route{
	{reflux.SystemStarted, logiface.LevelInformational, "loop started"},
	{reflux.SystemStopped, logiface.LevelInformational, "loop stopped"},
	{reflux.EventReduced, logiface.LevelTrace, "event reduced"},
	{reflux.ReducerPanicked, logiface.LevelError, "reducer panicked"},
	{reflux.FeedbackFailed, logiface.LevelWarning, "feedback failed"},
	{reflux.FeedbackCompleted, logiface.LevelDebug, "feedback completed"},
	{reflux.RequestStarted, logiface.LevelDebug, "request started"},
	{reflux.RequestEnded, logiface.LevelDebug, "request ended"},
	{reflux.EffectFailed, logiface.LevelWarning, "effect failed"},
	{reflux.EffectCompleted, logiface.LevelDebug, "effect completed"},
	{reflux.BindingReleased, logiface.LevelInformational, "binding released"},
	{reflux.SourceDecodeFailed, logiface.LevelWarning, "source payload rejected"},
}

// Hook registers a listener for every reflux signal that writes it to logger.
// Hooks are process wide and last for the life of the process.
func Hook[E logiface.Event](logger *logiface.Logger[E]) {
	for _, r := range routes {
		capitan.Hook(r.signal, func(_ context.Context, e *capitan.Event) {
			write(logger, r, e)
		})
	}
}

func write[E logiface.Event](logger *logiface.Logger[E], r route, e *capitan.Event) {
	b := logger.Build(r.level)
	if !b.Enabled() {
		b.Release()
		return
	}

	if v, ok := reflux.KeyOrigin.From(e); ok {
		b = b.Str("origin", v)
	}
	if v, ok := reflux.KeyFeedback.From(e); ok {
		b = b.Int("feedback", v)
	}
	if v, ok := reflux.KeyFeedbackCount.From(e); ok {
		b = b.Int("feedback_count", v)
	}
	if v, ok := reflux.KeyRequest.From(e); ok {
		b = b.Str("request", v)
	}
	if v, ok := reflux.KeyContentType.From(e); ok {
		b = b.Str("content_type", v)
	}
	if v, ok := reflux.KeyDuration.From(e); ok {
		b = b.Dur("duration", v)
	}
	if v, ok := reflux.KeyPending.From(e); ok {
		b = b.Int("pending", v)
	}
	if v, ok := reflux.KeyError.From(e); ok {
		b = b.Str("error", v)
	}
	b.Log(r.message)
}
