package derive

import (
	"context"
	"sync/atomic"
)

// Throttle wraps a request so that at most one pending computation is
// outstanding at a time. While a previously returned thunk has not yet
// settled, further invocations yield a nil thunk, which the engine
// treats as the request declining to produce a result.
//
// Completion always clears the in-flight flag, including on failure.
// Throttle does not cancel the outstanding computation; it only
// suppresses new ones.
func Throttle(fn RequestFunc) RequestFunc {
	var inFlight atomic.Bool

	return func(s State, g *Graph) Thunk {
		if _, probing := s.(*probeState); probing {
			// Dependency extraction invokes the body once and discards
			// the thunk; claiming the in-flight flag here would leave
			// it set forever.
			return fn(s, g)
		}

		if !inFlight.CompareAndSwap(false, true) {
			return nil
		}

		thunk := fn(s, g)
		if thunk == nil {
			inFlight.Store(false)
			return nil
		}

		return func(ctx context.Context) (any, error) {
			defer inFlight.Store(false)
			return thunk(ctx)
		}
	}
}
