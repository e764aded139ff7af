package reflux

import "github.com/zoobzio/capitan"

// System lifecycle signals.
var (
	// SystemStarted is emitted when the first subscriber connects a loop.
	SystemStarted = capitan.NewSignal(
		"reflux.system.started",
		"Feedback loop started",
	)

	// SystemStopped is emitted when a loop stops, either because the last
	// subscriber left or because the reducer failed.
	SystemStopped = capitan.NewSignal(
		"reflux.system.stopped",
		"Feedback loop stopped",
	)

	// EventReduced is emitted after each reducer application.
	EventReduced = capitan.NewSignal(
		"reflux.event.reduced",
		"Event folded into state",
	)

	// ReducerPanicked is emitted when the reducer panics. The loop ends.
	ReducerPanicked = capitan.NewSignal(
		"reflux.reducer.panicked",
		"Reducer panicked",
	)
)

// Feedback signals.
var (
	// FeedbackFailed is emitted when a feedback's event stream fails or
	// panics. Other feedbacks keep running.
	FeedbackFailed = capitan.NewSignal(
		"reflux.feedback.failed",
		"Feedback event stream failed",
	)

	// FeedbackCompleted is emitted when a feedback's event stream completes
	// while the loop is still running.
	FeedbackCompleted = capitan.NewSignal(
		"reflux.feedback.completed",
		"Feedback event stream completed",
	)
)

// Request and effect signals.
var (
	// RequestStarted is emitted when a request becomes live and its effect starts.
	RequestStarted = capitan.NewSignal(
		"reflux.request.started",
		"Request started",
	)

	// RequestEnded is emitted when a request is revoked and its effect canceled.
	RequestEnded = capitan.NewSignal(
		"reflux.request.ended",
		"Request ended",
	)

	// EffectFailed is emitted when an effect fails. The failure is contained.
	EffectFailed = capitan.NewSignal(
		"reflux.effect.failed",
		"Effect failed",
	)

	// EffectCompleted is emitted when an effect completes on its own.
	EffectCompleted = capitan.NewSignal(
		"reflux.effect.completed",
		"Effect completed",
	)
)

// Binding and source signals.
var (
	// BindingReleased is emitted when a binding's owner is gone and the
	// binding tears down.
	BindingReleased = capitan.NewSignal(
		"reflux.binding.released",
		"Binding owner released",
	)

	// SourceDecodeFailed is emitted when a watched payload cannot be decoded
	// or validated. The payload is dropped.
	SourceDecodeFailed = capitan.NewSignal(
		"reflux.source.decode.failed",
		"Source payload rejected",
	)
)
