package reflux

import (
	"context"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/pipz"
)

// CallOption configures the pipeline of an effect built with Call.
// Options wrap the call with middleware for retry, timeout, circuit
// breaking, and other reliability patterns. The first option is innermost.
type CallOption[R, E any] func(pipz.Chainable[*Invocation[R, E]]) pipz.Chainable[*Invocation[R, E]]

// buildPipeline wraps a terminal with pipeline options.
func buildPipeline[R, E any](terminal pipz.Chainable[*Invocation[R, E]], opts []CallOption[R, E]) pipz.Chainable[*Invocation[R, E]] {
	pipeline := terminal
	for _, opt := range opts {
		pipeline = opt(pipeline)
	}
	return pipeline
}

// -----------------------------------------------------------------------------
// Pipeline Options - Wrapping (With*)
// -----------------------------------------------------------------------------

// WithRetry retries a failed call immediately, up to maxAttempts attempts.
// For delays between attempts, use WithBackoff.
func WithRetry[R, E any](maxAttempts int) CallOption[R, E] {
	return func(p pipz.Chainable[*Invocation[R, E]]) pipz.Chainable[*Invocation[R, E]] {
		return pipz.NewRetry(retryID, p, maxAttempts)
	}
}

// WithBackoff retries a failed call with delays of baseDelay, 2*baseDelay,
// 4*baseDelay and so on, up to maxAttempts attempts.
func WithBackoff[R, E any](maxAttempts int, baseDelay time.Duration) CallOption[R, E] {
	return func(p pipz.Chainable[*Invocation[R, E]]) pipz.Chainable[*Invocation[R, E]] {
		return pipz.NewBackoff(backoffID, p, maxAttempts, baseDelay)
	}
}

// WithTimeout fails a call that takes longer than d.
func WithTimeout[R, E any](d time.Duration) CallOption[R, E] {
	return func(p pipz.Chainable[*Invocation[R, E]]) pipz.Chainable[*Invocation[R, E]] {
		return pipz.NewTimeout(timeoutID, p, d)
	}
}

// WithFallback tries each fallback in order when the call fails.
func WithFallback[R, E any](fallbacks ...pipz.Chainable[*Invocation[R, E]]) CallOption[R, E] {
	return func(p pipz.Chainable[*Invocation[R, E]]) pipz.Chainable[*Invocation[R, E]] {
		all := append([]pipz.Chainable[*Invocation[R, E]]{p}, fallbacks...)
		return pipz.NewFallback(fallbackID, all...)
	}
}

// WithCircuitBreaker rejects calls after failures consecutive failures until
// recovery has passed. The breaker is shared by every request of the effect.
func WithCircuitBreaker[R, E any](failures int, recovery time.Duration) CallOption[R, E] {
	return func(p pipz.Chainable[*Invocation[R, E]]) pipz.Chainable[*Invocation[R, E]] {
		return pipz.NewCircuitBreaker(circuitBreakerID, p, failures, recovery)
	}
}

// WithRateLimit delays calls so each category stays within limiter's rates.
// category maps a request to its limiter category; nil puts every request in
// one category. A call waiting for capacity fails if its request ends first.
//
// The limiter admits calls on wall time; clock times the waits between
// admission attempts (nil means clockz.RealClock).
//
// Example:
//
//	limiter := catrate.NewLimiter(map[time.Duration]int{time.Second: 5})
//	reflux.Call(fetch, reflux.WithRateLimit[Page, Event](clockz.RealClock, limiter, func(p Page) any {
//	    return p.Host
//	}))
func WithRateLimit[R, E any](clock clockz.Clock, limiter *catrate.Limiter, category func(R) any) CallOption[R, E] {
	if clock == nil {
		clock = clockz.RealClock
	}
	return func(p pipz.Chainable[*Invocation[R, E]]) pipz.Chainable[*Invocation[R, E]] {
		gate := pipz.Apply(rateLimitID, func(ctx context.Context, inv *Invocation[R, E]) (*Invocation[R, E], error) {
			var key any
			if category != nil {
				key = category(inv.Request)
			}
			for {
				next, ok := limiter.Allow(key)
				if ok {
					return inv, nil
				}
				timer := clock.NewTimer(time.Until(next))
				select {
				case <-ctx.Done():
					timer.Stop()
					return inv, ctx.Err()
				case <-timer.C():
				}
			}
		})
		return pipz.NewSequence(rateLimitSequenceID, gate, p)
	}
}

// WithErrorHandler passes call failures to handler. The failure still ends
// the effect; use this for observation, not recovery.
func WithErrorHandler[R, E any](handler pipz.Chainable[*pipz.Error[*Invocation[R, E]]]) CallOption[R, E] {
	return func(p pipz.Chainable[*Invocation[R, E]]) pipz.Chainable[*Invocation[R, E]] {
		return pipz.NewHandle(errorHandlerID, p, handler)
	}
}

// WithMiddleware runs processors in order before the call.
//
// Example:
//
//	reflux.Call(fetch,
//	    reflux.WithMiddleware(
//	        reflux.UseTransform[string, Event](normalizeID, normalize),
//	        reflux.UseEffect[string, Event](auditID, audit),
//	    ),
//	)
func WithMiddleware[R, E any](processors ...pipz.Chainable[*Invocation[R, E]]) CallOption[R, E] {
	return func(p pipz.Chainable[*Invocation[R, E]]) pipz.Chainable[*Invocation[R, E]] {
		all := make([]pipz.Chainable[*Invocation[R, E]], 0, len(processors)+1)
		all = append(all, processors...)
		all = append(all, p)
		return pipz.NewSequence(middlewareID, all...)
	}
}

// -----------------------------------------------------------------------------
// Middleware Processors (Use*)
// -----------------------------------------------------------------------------

// UseTransform creates a processor that rewrites the invocation and cannot fail.
func UseTransform[R, E any](id pipz.Identity, fn func(context.Context, *Invocation[R, E]) *Invocation[R, E]) pipz.Chainable[*Invocation[R, E]] {
	return pipz.Transform(id, fn)
}

// UseApply creates a processor that rewrites the invocation and may fail.
func UseApply[R, E any](id pipz.Identity, fn func(context.Context, *Invocation[R, E]) (*Invocation[R, E], error)) pipz.Chainable[*Invocation[R, E]] {
	return pipz.Apply(id, fn)
}

// UseEffect creates a processor that performs a side effect and passes the
// invocation through unchanged.
func UseEffect[R, E any](id pipz.Identity, fn func(context.Context, *Invocation[R, E]) error) pipz.Chainable[*Invocation[R, E]] {
	return pipz.Effect(id, fn)
}

// UseEnrich creates a processor that attempts an optional enhancement. A
// failure is ignored and the original invocation continues.
func UseEnrich[R, E any](id pipz.Identity, fn func(context.Context, *Invocation[R, E]) (*Invocation[R, E], error)) pipz.Chainable[*Invocation[R, E]] {
	return pipz.Enrich(id, fn)
}

// UseFilter runs processor only when condition holds; otherwise the
// invocation passes through unchanged.
func UseFilter[R, E any](id pipz.Identity, condition func(context.Context, *Invocation[R, E]) bool, processor pipz.Chainable[*Invocation[R, E]]) pipz.Chainable[*Invocation[R, E]] {
	return pipz.NewFilter(id, condition, processor)
}
