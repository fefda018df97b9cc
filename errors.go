package derive

import (
	"fmt"
	"runtime/debug"
)

// ExtractError reports a failed dependency probe. It is returned from
// NewGraph when a deriver without an explicit params list panics during
// the single probe invocation; a graph whose construction produced an
// ExtractError must not be used.
type ExtractError struct {
	Key        string
	Recovered  any
	StackTrace []byte
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("dependency extraction failed for deriver %q: %v", e.Key, e.Recovered)
}

func (e *ExtractError) Unwrap() error {
	if err, ok := e.Recovered.(error); ok {
		return err
	}
	return nil
}

// RequestError wraps a failure from an asynchronous request's pending
// computation. It is logged and handed to extensions; it never
// propagates to the caller of the push that triggered the request.
type RequestError struct {
	Key       string
	RequestID string
	Cause     error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request %q (id %s) failed: %v", e.Key, e.RequestID, e.Cause)
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

// As performs a safe type assertion with a descriptive error.
func As[T any](value any) (T, error) {
	if value == nil {
		var zero T
		return zero, nil
	}

	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("type assertion error: expected %T, got %T (value: %v)", zero, value, value)
	}

	return typed, nil
}

func newExtractError(key string, recovered any) *ExtractError {
	return &ExtractError{
		Key:        key,
		Recovered:  recovered,
		StackTrace: debug.Stack(),
	}
}
