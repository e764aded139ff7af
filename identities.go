package reflux

import "github.com/zoobzio/pipz"

// Pipeline identities for effect calls.
var (
	callID           = pipz.NewIdentity("reflux:call", "Runs the effect function")
	retryID          = pipz.NewIdentity("reflux:retry", "Retries failed effect calls")
	backoffID        = pipz.NewIdentity("reflux:backoff", "Retries failed effect calls with exponential backoff")
	timeoutID        = pipz.NewIdentity("reflux:timeout", "Bounds effect call duration")
	fallbackID       = pipz.NewIdentity("reflux:fallback", "Tries alternatives when the effect call fails")
	circuitBreakerID = pipz.NewIdentity("reflux:circuit-breaker", "Rejects effect calls after repeated failures")
	errorHandlerID   = pipz.NewIdentity("reflux:error-handler", "Observes effect call failures")
	middlewareID     = pipz.NewIdentity("reflux:middleware", "Runs processors before the effect call")

	rateLimitID         = pipz.NewIdentity("reflux:rate-limit", "Waits for rate limit capacity")
	rateLimitSequenceID = pipz.NewIdentity("reflux:rate-limited", "Runs the effect call behind a rate limit")
)
