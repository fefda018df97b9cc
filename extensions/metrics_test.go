package extensions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derive "github.com/derive-fn/derive-go"
)

func TestMetricsExtensionCountsPushes(t *testing.T) {
	registry := prometheus.NewRegistry()
	ext := NewMetricsExtension(WithRegistry(registry))

	g, err := derive.NewGraph(
		derive.WithExtension(ext),
		derive.WithDeriver("b", func(s derive.State, g *derive.Graph) any {
			return derive.Value[int](s, "a") + 1
		}, derive.Params("a")),
	)
	require.NoError(t, err)
	defer g.Dispose()

	g.PushMode(derive.Batch{"a": 1}, derive.Accurate)
	g.PushMode(derive.Batch{"a": 2}, derive.Accurate)
	g.PushMode(derive.Batch{"a": 3}, derive.Fast)

	assert.Equal(t, 2.0, testutil.ToFloat64(ext.pushesTotal.WithLabelValues("accurate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ext.pushesTotal.WithLabelValues("fast")))

	// Each push notifies both the batch key and the recomputed deriver.
	assert.Equal(t, 3.0, testutil.ToFloat64(ext.changesTotal.WithLabelValues("a")))
	assert.Equal(t, 3.0, testutil.ToFloat64(ext.changesTotal.WithLabelValues("b")))

	count, err := testutil.GatherAndCount(registry, "derive_push_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetricsExtensionCountsRequestFailures(t *testing.T) {
	registry := prometheus.NewRegistry()
	ext := NewMetricsExtension(
		WithRegistry(registry),
		WithNamespace("graphtest"),
	)

	failed := make(chan struct{})
	g, err := derive.NewGraph(
		derive.WithExtension(ext),
		derive.WithExtension(&settleSignal{
			BaseExtension: derive.NewBaseExtension("settle-signal"),
			ch:            failed,
		}),
		derive.WithRequest("r", func(s derive.State, g *derive.Graph) derive.Thunk {
			if derive.Value[int](s, "q") == 0 {
				return nil
			}
			return func(ctx context.Context) (any, error) {
				return nil, errors.New("backend down")
			}
		}, derive.Params("q")),
	)
	require.NoError(t, err)
	defer g.Dispose()

	g.Push(derive.Batch{"q": 1})

	select {
	case <-failed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for request failure")
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(ext.requestFailures.WithLabelValues("r")))

	count, err := testutil.GatherAndCount(registry, "graphtest_request_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
