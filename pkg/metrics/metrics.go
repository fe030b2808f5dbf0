// Package metrics exposes docstore activity as Prometheus metrics. The
// Collector is an activity hook; pass it to docstore.WithActivityHooks.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-docstore/pkg/activity"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "docstore"

// Option configures a Collector.
type Option func(*config)

type config struct {
	namespace string
	buckets   []float64
}

// WithNamespace overrides DefaultNamespace.
func WithNamespace(namespace string) Option {
	return func(c *config) {
		if namespace != "" {
			c.namespace = namespace
		}
	}
}

// WithPayloadBuckets overrides the payload size histogram buckets.
func WithPayloadBuckets(buckets []float64) Option {
	return func(c *config) {
		if len(buckets) > 0 {
			c.buckets = buckets
		}
	}
}

// Collector counts collection events, advisories and payload sizes.
type Collector struct {
	events     *prometheus.CounterVec
	advisories *prometheus.CounterVec
	records    *prometheus.GaugeVec
	payload    *prometheus.HistogramVec
	fallbacks  *prometheus.CounterVec
}

var _ activity.ActivityHook = (*Collector)(nil)

// New registers the docstore metrics with reg.
func New(reg prometheus.Registerer, opts ...Option) (*Collector, error) {
	if reg == nil {
		return nil, fmt.Errorf("metrics: registerer is nil")
	}
	cfg := config{
		namespace: DefaultNamespace,
		buckets:   prometheus.ExponentialBuckets(256, 4, 8),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "events_total",
			Help:      "Collection lifecycle events by verb",
		}, []string{"collection", "verb"}),
		advisories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "advisories_total",
			Help:      "Non-fatal security and durability advisories by code",
		}, []string{"collection", "code"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.namespace,
			Name:      "records",
			Help:      "Records in the collection after the last load or save",
		}, []string{"collection"}),
		payload: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.namespace,
			Name:      "payload_bytes",
			Help:      "Stored payload size in bytes",
			Buckets:   cfg.buckets,
		}, []string{"collection", "verb"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "reconcile_fallbacks_total",
			Help:      "Saves that discarded the change set for the caller's final snapshot",
		}, []string{"collection"}),
	}

	for _, collector := range []prometheus.Collector{c.events, c.advisories, c.records, c.payload, c.fallbacks} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}
	return c, nil
}

// MustNew is New for the default registerer; it panics on registration errors.
func MustNew(opts ...Option) *Collector {
	c, err := New(prometheus.DefaultRegisterer, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Notify implements activity.ActivityHook.
func (c *Collector) Notify(_ context.Context, event activity.Event) error {
	collection := event.Collection()
	if c == nil || collection == "" {
		return nil
	}
	c.events.WithLabelValues(collection, event.Verb).Inc()

	switch event.Verb {
	case activity.VerbAdvisory:
		if code := event.Code(); code != "" {
			c.advisories.WithLabelValues(collection, code).Inc()
		}
	case activity.VerbLoaded, activity.VerbSaved, activity.VerbBackupRestored:
		if records, ok := event.Metadata["records"].(int); ok {
			c.records.WithLabelValues(collection).Set(float64(records))
		}
	}

	if event.Verb == activity.VerbSaved {
		if fellBack, ok := event.Metadata["fell_back"].(bool); ok && fellBack {
			c.fallbacks.WithLabelValues(collection).Inc()
		}
	}
	if size, ok := event.Metadata["bytes"].(int); ok {
		c.payload.WithLabelValues(collection, event.Verb).Observe(float64(size))
	}
	return nil
}

// Events returns the events_total counter.
func (c *Collector) Events() *prometheus.CounterVec { return c.events }

// Advisories returns the advisories_total counter.
func (c *Collector) Advisories() *prometheus.CounterVec { return c.advisories }

// Records returns the records gauge.
func (c *Collector) Records() *prometheus.GaugeVec { return c.records }

// Payload returns the payload_bytes histogram.
func (c *Collector) Payload() *prometheus.HistogramVec { return c.payload }

// Fallbacks returns the reconcile_fallbacks_total counter.
func (c *Collector) Fallbacks() *prometheus.CounterVec { return c.fallbacks }
