package extensions

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	derive "github.com/derive-fn/derive-go"
)

// MetricsConfig configures the Prometheus metrics extension.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "derive").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for push duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics extension.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "derive",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// MetricsExtension collects Prometheus metrics about graph activity.
//
// Metrics collected:
//   - derive_pushes_total: Counter of pushes by mode
//   - derive_push_duration_seconds: Histogram of push duration by mode
//   - derive_changes_total: Counter of change notifications by key
//   - derive_request_failures_total: Counter of failed requests by key
type MetricsExtension struct {
	derive.BaseExtension

	pushesTotal     *prometheus.CounterVec
	pushDuration    *prometheus.HistogramVec
	changesTotal    *prometheus.CounterVec
	requestFailures *prometheus.CounterVec
}

// NewMetricsExtension creates a metrics extension, registering its
// collectors on the configured registry.
func NewMetricsExtension(opts ...MetricsOption) *MetricsExtension {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &MetricsExtension{
		BaseExtension: derive.NewBaseExtension("metrics"),

		pushesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "pushes_total",
			Help:        "Total number of pushes propagated",
			ConstLabels: config.ConstLabels,
		}, []string{"mode"}),

		pushDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "push_duration_seconds",
			Help:        "Push propagation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"mode"}),

		changesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "changes_total",
			Help:        "Total number of change notifications by key",
			ConstLabels: config.ConstLabels,
		}, []string{"key"}),

		requestFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "request_failures_total",
			Help:        "Total number of failed asynchronous requests by key",
			ConstLabels: config.ConstLabels,
		}, []string{"key"}),
	}
}

func (e *MetricsExtension) Wrap(ctx context.Context, next func() (any, error), op *derive.Operation) (any, error) {
	if op.Kind != derive.OpPush {
		return next()
	}

	start := time.Now()
	result, err := next()

	mode := op.Mode.String()
	e.pushDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	e.pushesTotal.WithLabelValues(mode).Inc()

	return result, err
}

func (e *MetricsExtension) OnChange(key string, value any, g *derive.Graph) {
	e.changesTotal.WithLabelValues(key).Inc()
}

func (e *MetricsExtension) OnRequestError(err error, key string, g *derive.Graph) {
	e.requestFailures.WithLabelValues(key).Inc()
}
