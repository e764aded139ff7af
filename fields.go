package reflux

import "github.com/zoobzio/capitan"

// Field keys for loop events.
var (
	// KeyFeedback is the index of the feedback an event relates to.
	KeyFeedback = capitan.NewIntKey("feedback")

	// KeyFeedbackCount is the number of feedbacks attached to a loop.
	KeyFeedbackCount = capitan.NewIntKey("feedback_count")

	// KeyRequest is the request value, formatted with %v.
	KeyRequest = capitan.NewStringKey("request")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyOrigin is the origin of a contained fault.
	KeyOrigin = capitan.NewStringKey("origin")

	// KeyDuration is how long a reducer application took.
	KeyDuration = capitan.NewDurationKey("duration")

	// KeyPending is the number of events queued behind the one just reduced.
	KeyPending = capitan.NewIntKey("pending")

	// KeyContentType is the codec content type of a rejected payload.
	KeyContentType = capitan.NewStringKey("content_type")
)
