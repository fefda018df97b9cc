package derive

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// dispatchRequest runs a request's pending computation on its own
// goroutine. Settlement with a value issues a new push of
// {key: value} using the default mode; settlement with an error is
// caught and logged, writes nothing and notifies nothing, so the
// property retains its prior value.
func (g *Graph) dispatchRequest(key string, thunk Thunk) {
	id := uuid.NewString()

	g.requests.Add(1)
	go func() {
		defer g.requests.Done()

		if g.sem != nil {
			if err := g.sem.Acquire(g.ctx, 1); err != nil {
				g.logger.Warn("request not started",
					zap.String("key", key),
					zap.String("request_id", id),
					zap.Error(err),
				)
				return
			}
			defer g.sem.Release(1)
		}

		v, err := g.settleRequest(key, thunk)
		if err != nil {
			reqErr := &RequestError{Key: key, RequestID: id, Cause: err}
			g.logger.Warn("request failed",
				zap.String("key", key),
				zap.String("request_id", id),
				zap.Error(err),
			)
			g.notifyRequestErrorExtensions(reqErr, key)
			return
		}

		g.Push(Batch{key: v})
	}()
}

// settleRequest runs the thunk wrapped by the graph's extensions.
func (g *Graph) settleRequest(key string, thunk Thunk) (any, error) {
	op := &Operation{Kind: OpRequest, Key: key, Graph: g}
	next := g.wrapExtensions(func() (any, error) {
		return thunk(g.ctx)
	}, op)
	return next()
}
