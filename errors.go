package reflux

import (
	"errors"
	"fmt"
)

// ErrNilStream is recorded when a feedback returns a nil event stream.
var ErrNilStream = errors.New("feedback returned a nil stream")

// ReducerPanicError is the terminal error of a state stream whose reducer
// panicked. Reducers must be total; a panic ends the loop.
type ReducerPanicError struct {
	Value any
}

func (e *ReducerPanicError) Error() string {
	return fmt.Sprintf("reducer panicked: %v", e.Value)
}

// Unwrap returns the recovered value when it is an error.
func (e *ReducerPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// reduceSafely applies reduce, converting a panic into a ReducerPanicError.
func reduceSafely[S, E any](reduce func(S, E) S, state S, event E) (next S, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ReducerPanicError{Value: r}
		}
	}()
	return reduce(state, event), nil
}

// callSafely runs fn, converting a panic into a PanicError.
func callSafely(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	fn()
	return nil
}
