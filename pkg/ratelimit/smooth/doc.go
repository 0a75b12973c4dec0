/*
Package smooth provides a smoothed-burst token bucket rate limiter.

The limiter refills lazily: it keeps no timer and instead works out, on each
call, how many permits accumulated since it was last idle. Permits banked in
the bucket are spent without waiting, up to the configured burst. Demand
beyond that is converted to time at the configured rate and pushed onto a
next-free instant, so each caller waits for the debt of the callers before it.

Basic usage:

	limiter, err := smooth.NewSafe(10, 20) // 10 permits/sec, burst of 20
	if err != nil {
		return err
	}

	// Block until a permit is available.
	if _, err := limiter.Acquire(ctx); err != nil {
		return err
	}

	// Take a permit only if no wait is needed.
	if limiter.TryAcquire() {
		// proceed
	}

	// Wait at most 50ms for the turn to start.
	ok, err := limiter.TryAcquireN(ctx, 3, 50*time.Millisecond)

A caller asking for more permits than are banked does not wait for them
itself. It proceeds as soon as earlier debt is paid and leaves its own
shortfall to be paid by the next caller. This keeps bursty, infrequent
callers fast while still enforcing the rate over time.

Limiters built with a zero Config.Rate have no rate yet; every acquisition
returns errors.ErrRateNotSet until SetRate is called.

All methods are safe for concurrent use. The internal lock is held only
while computing a reservation, never while sleeping.
*/
package smooth
