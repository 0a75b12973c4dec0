// Package integration contains integration tests that verify cross-package functionality.
// These tests ensure that limiters, metrics and rate schedules work together in realistic scenarios.
package integration

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/smoothrate/internal/testutil"
	"github.com/vnykmshr/smoothrate/pkg/metrics"
	"github.com/vnykmshr/smoothrate/pkg/ratelimit/schedule"
	"github.com/vnykmshr/smoothrate/pkg/ratelimit/smooth"
)

// TestConcurrentAcquireWithMetrics verifies that concurrent callers are paced
// at the configured rate and that every permit is counted.
func TestConcurrentAcquireWithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	config := metrics.Config{Enabled: true, Registry: reg}

	// 50 permits per second, 5 banked up front
	limiter, err := smooth.NewWithConfigAndMetrics(smooth.Config{
		Rate:           50,
		Burst:          5,
		InitialPermits: -1,
	}, "workers", config)
	require.NoError(t, err)

	const callers = 30
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := limiter.Acquire(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	// Five banked permits and one pay-forward leave 24 intervals of 20ms.
	assert.GreaterOrEqual(t, elapsed, 450*time.Millisecond)
	assert.Less(t, elapsed, 3*time.Second)

	r := metrics.Shared(config)
	assert.Equal(t, float64(callers), promtest.ToFloat64(r.RateLimitAllowed.WithLabelValues("smooth", "workers")))
	assert.Equal(t, 0.0, promtest.ToFloat64(r.RateLimitDenied.WithLabelValues("smooth", "workers")))
}

// TestHTTPRateLimitingWithMetricsEndpoint guards a handler with TryAcquire and
// reads the outcome back from the Prometheus endpoint.
func TestHTTPRateLimitingWithMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	limiter, err := smooth.NewWithConfigAndMetrics(smooth.Config{
		Rate:           1,
		Burst:          2,
		InitialPermits: -1,
	}, "http", metrics.Config{Enabled: true, Registry: reg})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/work", func(w http.ResponseWriter, r *http.Request) {
		ok, err := limiter.TryAcquireN(r.Context(), 1, 0)
		if err != nil || !ok {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := httptest.NewServer(mux)
	defer srv.Close()

	var codes []int
	for i := 0; i < 5; i++ {
		resp, err := http.Get(srv.URL + "/work")
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
		require.NoError(t, resp.Body.Close())
	}

	// Two banked permits, then one more whose cost is pushed onto the next caller.
	assert.Equal(t, []int{200, 200, 200, 429, 429}, codes)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	text := string(body)
	assert.Contains(t, text, `smoothrate_ratelimit_allowed_total{limiter_name="http",limiter_type="smooth"} 3`)
	assert.Contains(t, text, `smoothrate_ratelimit_denied_total{limiter_name="http",limiter_type="smooth"} 2`)
	assert.Contains(t, text, `smoothrate_ratelimit_rate_permits_per_second{limiter_name="http",limiter_type="smooth"} 1`)
}

// TestPlanFileDrivesLimiter loads a plan from disk and applies its entries to
// a limiter that starts without a rate.
func TestPlanFileDrivesLimiter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
location: UTC
entries:
  - name: open
    cron: "0 0 8 * * *"
    rate: 10
    burst: 3
  - name: closed
    cron: "0 0 20 * * *"
    rate: 1
`), 0o600))

	plan, err := schedule.LoadPlanFile(path)
	require.NoError(t, err)

	clock := testutil.NewMockClock(time.Time{})
	limiter, err := smooth.NewWithConfigSafe(smooth.Config{Clock: clock})
	require.NoError(t, err)

	_, err = limiter.Reserve(1)
	require.Error(t, err, "limiter without a rate must fail fast")

	reg := prometheus.NewRegistry()
	sched, err := schedule.New(limiter, plan, schedule.Config{
		Metrics: metrics.Config{Enabled: true, Registry: reg},
	})
	require.NoError(t, err)

	require.NoError(t, sched.Apply("open"))
	assert.Equal(t, 10.0, limiter.Rate())
	assert.Equal(t, 3, limiter.Burst())

	// A second at 10/s fills the three-permit bucket.
	clock.Advance(time.Second)
	assert.InDelta(t, 3.0, limiter.StoredPermits(), 1e-9)

	granted := 0
	for i := 0; i < 6; i++ {
		if limiter.TryAcquire() {
			granted++
		}
	}
	assert.Equal(t, 4, granted)

	require.NoError(t, sched.Apply("closed"))
	assert.InDelta(t, 1.0, limiter.Rate(), 1e-9)
	assert.Equal(t, 3, limiter.Burst())

	r := metrics.Shared(metrics.Config{Registry: reg})
	assert.Equal(t, 1.0, promtest.ToFloat64(r.ScheduleApplied.WithLabelValues("open")))
	assert.Equal(t, 1.0, promtest.ToFloat64(r.ScheduleApplied.WithLabelValues("closed")))

	next, err := sched.Next("closed")
	require.NoError(t, err)
	assert.Equal(t, 20, next.Hour())
}

// TestRequestCancellationReleasesCaller checks that a client giving up frees
// the handler while the limiter keeps the reservation.
func TestRequestCancellationReleasesCaller(t *testing.T) {
	limiter, err := smooth.NewSafe(1, 0)
	require.NoError(t, err)

	_, err = limiter.Reserve(1) // the next caller owes one second
	require.NoError(t, err)

	handlerDone := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := limiter.Acquire(r.Context())
		handlerDone <- err
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = http.DefaultClient.Do(req)
	require.Error(t, err)

	select {
	case err := <-handlerDone:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("handler still waiting after client disconnect")
	}
	assert.Less(t, time.Since(start), time.Second)

	// The abandoned reservation still counts against later callers.
	ok, err := limiter.TryAcquireN(context.Background(), 1, 100*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}
