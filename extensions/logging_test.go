package extensions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	derive "github.com/derive-fn/derive-go"
)

func TestLoggingExtensionLogsPushes(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	g, err := derive.NewGraph(
		derive.WithExtension(NewLoggingExtension(zap.New(core))),
		derive.WithDefaults(derive.Batch{"a": 1}),
		derive.WithDeriver("b", func(s derive.State, g *derive.Graph) any {
			return derive.Value[int](s, "a") + 1
		}, derive.Params("a")),
	)
	require.NoError(t, err)
	defer g.Dispose()

	g.Push(derive.Batch{"a": 2})

	entries := logs.FilterMessage("push completed").All()
	// One for the construction defaults push, one for ours.
	require.Len(t, entries, 2)

	fields := entries[1].ContextMap()
	assert.Equal(t, "accurate", fields["mode"])
	assert.Equal(t, []any{"b"}, fields["updated"].([]any))
}

func TestLoggingExtensionLogsRequestFailure(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	settled := make(chan struct{})
	g, err := derive.NewGraph(
		derive.WithExtension(NewLoggingExtension(zap.New(core))),
		derive.WithExtension(&settleSignal{
			BaseExtension: derive.NewBaseExtension("settle-signal"),
			ch:            settled,
		}),
		derive.WithRequest("r", func(s derive.State, g *derive.Graph) derive.Thunk {
			if derive.Value[int](s, "q") == 0 {
				return nil
			}
			return func(ctx context.Context) (any, error) {
				return nil, errors.New("boom")
			}
		}, derive.Params("q")),
	)
	require.NoError(t, err)
	defer g.Dispose()

	g.Push(derive.Batch{"q": 1})

	select {
	case <-settled:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for request failure")
	}

	warns := logs.FilterMessage("request settled with error").All()
	require.Len(t, warns, 1)
	assert.Equal(t, "r", warns[0].ContextMap()["key"])

	drops := logs.FilterMessage("request dropped").All()
	require.Len(t, drops, 1)
}

type settleSignal struct {
	derive.BaseExtension
	ch chan struct{}
}

func (e *settleSignal) OnRequestError(err error, key string, g *derive.Graph) {
	close(e.ch)
}
