package smooth

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/vnykmshr/smoothrate/pkg/metrics"
)

const limiterType = "smooth"

// MetricsLimiter wraps a Limiter with Prometheus metrics collection.
type MetricsLimiter struct {
	limiter  Limiter
	name     string
	registry atomic.Pointer[metrics.Registry]
	enabled  atomic.Bool
}

var _ metrics.Instrumentable = (*MetricsLimiter)(nil)

// NewWithMetrics creates a limiter that starts full and reports to the
// default Prometheus registerer under the given name.
func NewWithMetrics(rate float64, burst int, name string) (Limiter, error) {
	base, err := NewSafe(rate, burst)
	if err != nil {
		return nil, err
	}
	return Instrument(base, name, metrics.Config{Enabled: true}), nil
}

// NewWithConfigAndMetrics creates a limiter with custom config and metrics.
// When metrics are disabled the plain limiter is returned.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) (Limiter, error) {
	base, err := NewWithConfigSafe(config)
	if err != nil {
		return nil, err
	}
	if !metricsConfig.Enabled {
		return base, nil
	}
	return Instrument(base, name, metricsConfig), nil
}

// Instrument wraps an existing limiter with metrics collection.
func Instrument(limiter Limiter, name string, config metrics.Config) *MetricsLimiter {
	ml := &MetricsLimiter{
		limiter: limiter,
		name:    name,
	}
	ml.registry.Store(metrics.Shared(config))
	ml.enabled.Store(config.Enabled)
	ml.observeRate()
	return ml
}

// Acquire reserves one permit and blocks until it is available.
func (ml *MetricsLimiter) Acquire(ctx context.Context) (time.Duration, error) {
	return ml.AcquireN(ctx, 1)
}

// AcquireN reserves n permits and blocks until they are available.
func (ml *MetricsLimiter) AcquireN(ctx context.Context, n int) (time.Duration, error) {
	start := time.Now()
	ml.countRequest(n)

	wait, err := ml.limiter.AcquireN(ctx, n)

	ml.observeWait(time.Since(start))
	ml.countOutcome(n, err == nil)
	ml.observeStored()
	return wait, err
}

// TryAcquire takes one permit only if no wait is required.
func (ml *MetricsLimiter) TryAcquire() bool {
	ml.countRequest(1)
	ok := ml.limiter.TryAcquire()
	ml.countOutcome(1, ok)
	ml.observeStored()
	return ok
}

// TryAcquireN reserves n permits if the caller's turn starts within timeout.
func (ml *MetricsLimiter) TryAcquireN(ctx context.Context, n int, timeout time.Duration) (bool, error) {
	start := time.Now()
	ml.countRequest(n)

	ok, err := ml.limiter.TryAcquireN(ctx, n, timeout)

	if ok {
		ml.observeWait(time.Since(start))
	}
	ml.countOutcome(n, ok && err == nil)
	ml.observeStored()
	return ok, err
}

// Reserve reserves n permits without blocking.
func (ml *MetricsLimiter) Reserve(n int) (time.Duration, error) {
	ml.countRequest(n)
	wait, err := ml.limiter.Reserve(n)
	ml.countOutcome(n, err == nil)
	ml.observeStored()
	return wait, err
}

// SetRate changes the permit rate.
func (ml *MetricsLimiter) SetRate(permitsPerSecond float64) error {
	if err := ml.limiter.SetRate(permitsPerSecond); err != nil {
		return err
	}
	ml.observeRate()
	return nil
}

// Rate returns the configured rate.
func (ml *MetricsLimiter) Rate() float64 {
	return ml.limiter.Rate()
}

// SetBurst changes the bucket capacity.
func (ml *MetricsLimiter) SetBurst(maxPermits int) error {
	if err := ml.limiter.SetBurst(maxPermits); err != nil {
		return err
	}
	ml.observeStored()
	return nil
}

// Burst returns the bucket capacity.
func (ml *MetricsLimiter) Burst() int {
	return ml.limiter.Burst()
}

// StoredPermits returns the permits currently banked.
func (ml *MetricsLimiter) StoredPermits() float64 {
	stored := ml.limiter.StoredPermits()
	if ml.enabled.Load() {
		ml.registry.Load().RateLimitTokens.WithLabelValues(limiterType, ml.name).Set(stored)
	}
	return stored
}

// EnableMetrics enables metrics collection.
func (ml *MetricsLimiter) EnableMetrics(config metrics.Config) error {
	if config.Registry != nil {
		ml.registry.Store(metrics.Shared(config))
	}
	ml.enabled.Store(config.Enabled)
	ml.observeRate()
	return nil
}

// DisableMetrics disables metrics collection.
func (ml *MetricsLimiter) DisableMetrics() {
	ml.enabled.Store(false)
}

// MetricsEnabled returns true if metrics are currently enabled.
func (ml *MetricsLimiter) MetricsEnabled() bool {
	return ml.enabled.Load()
}

func (ml *MetricsLimiter) countRequest(n int) {
	if !ml.enabled.Load() || n <= 0 {
		return
	}
	ml.registry.Load().RateLimitRequests.WithLabelValues(limiterType, ml.name).Add(float64(n))
}

func (ml *MetricsLimiter) countOutcome(n int, allowed bool) {
	if !ml.enabled.Load() || n <= 0 {
		return
	}
	r := ml.registry.Load()
	if allowed {
		r.RateLimitAllowed.WithLabelValues(limiterType, ml.name).Add(float64(n))
	} else {
		r.RateLimitDenied.WithLabelValues(limiterType, ml.name).Add(float64(n))
	}
}

func (ml *MetricsLimiter) observeWait(d time.Duration) {
	if !ml.enabled.Load() {
		return
	}
	ml.registry.Load().RateLimitWaitTime.WithLabelValues(limiterType, ml.name).Observe(d.Seconds())
}

func (ml *MetricsLimiter) observeStored() {
	if !ml.enabled.Load() {
		return
	}
	ml.registry.Load().RateLimitTokens.WithLabelValues(limiterType, ml.name).Set(ml.limiter.StoredPermits())
}

func (ml *MetricsLimiter) observeRate() {
	if !ml.enabled.Load() {
		return
	}
	ml.registry.Load().RateLimitRate.WithLabelValues(limiterType, ml.name).Set(ml.limiter.Rate())
}
