// Package metrics provides Prometheus instrumentation for smoothrate components.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name unless Config.Namespace overrides it.
const DefaultNamespace = "smoothrate"

// Registry holds all metric instances for smoothrate components.
type Registry struct {
	// Rate Limiting Metrics
	RateLimitRequests *prometheus.CounterVec
	RateLimitAllowed  *prometheus.CounterVec
	RateLimitDenied   *prometheus.CounterVec
	RateLimitWaitTime *prometheus.HistogramVec
	RateLimitTokens   *prometheus.GaugeVec
	RateLimitRate     *prometheus.GaugeVec

	// Rate Schedule Metrics
	ScheduleApplied *prometheus.CounterVec
	ScheduleFailed  *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by smoothrate components.
var DefaultRegistry *Registry

type registryKey struct {
	reg       prometheus.Registerer
	namespace string
}

var (
	sharedMu sync.Mutex
	shared   = map[registryKey]*Registry{}
)

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
	shared[registryKey{prometheus.DefaultRegisterer, DefaultNamespace}] = DefaultRegistry
}

// Shared returns the Registry bound to config's registerer and namespace,
// creating it on first use. Components sharing a Prometheus registerer must
// go through Shared, since registering the same collectors twice panics.
// Constant labels are taken from the first config seen for a registerer.
func Shared(config Config) *Registry {
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	namespace := config.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	key := registryKey{reg, namespace}

	sharedMu.Lock()
	defer sharedMu.Unlock()

	if r, ok := shared[key]; ok {
		return r
	}
	r := newRegistry(reg, namespace, config.Labels)
	shared[key] = r
	return r
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return newRegistry(reg, DefaultNamespace, nil)
}

// NewRegistryFromConfig creates a registry honoring the namespace and constant
// labels of config. A nil config.Registry falls back to prometheus.DefaultRegisterer.
func NewRegistryFromConfig(config Config) *Registry {
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	namespace := config.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return newRegistry(reg, namespace, config.Labels)
}

func newRegistry(reg prometheus.Registerer, namespace string, labels prometheus.Labels) *Registry {
	factory := promauto.With(reg)
	limiterLabels := []string{"limiter_type", "limiter_name"}

	return &Registry{
		RateLimitRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "ratelimit",
				Name:        "requests_total",
				Help:        "Total number of permits requested",
				ConstLabels: labels,
			},
			limiterLabels,
		),

		RateLimitAllowed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "ratelimit",
				Name:        "allowed_total",
				Help:        "Total number of permits granted",
				ConstLabels: labels,
			},
			limiterLabels,
		),

		RateLimitDenied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "ratelimit",
				Name:        "denied_total",
				Help:        "Total number of permits denied or abandoned",
				ConstLabels: labels,
			},
			limiterLabels,
		),

		RateLimitWaitTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "ratelimit",
				Name:        "wait_duration_seconds",
				Help:        "Time spent waiting for reserved permits",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			limiterLabels,
		),

		RateLimitTokens: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "ratelimit",
				Name:        "stored_permits",
				Help:        "Number of permits currently banked in the bucket",
				ConstLabels: labels,
			},
			limiterLabels,
		),

		RateLimitRate: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "ratelimit",
				Name:        "rate_permits_per_second",
				Help:        "Configured permit rate",
				ConstLabels: labels,
			},
			limiterLabels,
		),

		ScheduleApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "schedule",
				Name:        "applied_total",
				Help:        "Total number of scheduled rate changes applied",
				ConstLabels: labels,
			},
			[]string{"entry"},
		),

		ScheduleFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "schedule",
				Name:        "failed_total",
				Help:        "Total number of scheduled rate changes that failed",
				ConstLabels: labels,
			},
			[]string{"entry"},
		),
	}
}
