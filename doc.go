/*
Package smoothrate provides a smoothed-burst token bucket rate limiter for Go
applications, with Prometheus metrics and calendar-driven rate changes.

Rate Limiting (pkg/ratelimit):
  - smooth: Token bucket that refills lazily and lets a caller pay forward
  - schedule: Cron-driven rate plans applied to a limiter, loaded from YAML

Supporting packages:
  - metrics: Prometheus collectors shared by limiters and schedules
  - common/errors: Sentinel errors and structured validation errors
  - common/validation: Argument and configuration checks

Example usage:

	import (
		"github.com/vnykmshr/smoothrate/pkg/ratelimit/smooth"
	)

	limiter, _ := smooth.NewSafe(10, 20) // 10 permits/s, burst 20

	if limiter.TryAcquire() {
		// handle request
	}

	// Block until two permits are paid for, or ctx is done
	waited, err := limiter.AcquireN(ctx, 2)

See the examples/ directory for complete programs.
*/
package smoothrate
