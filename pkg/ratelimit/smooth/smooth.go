package smooth

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/smoothrate/pkg/common/errors"
	"github.com/vnykmshr/smoothrate/pkg/common/validation"
)

// Acquire reserves one permit and blocks until it is available.
func (tb *tokenBucket) Acquire(ctx context.Context) (time.Duration, error) {
	return tb.AcquireN(ctx, 1)
}

// AcquireN reserves n permits and blocks until they are available.
func (tb *tokenBucket) AcquireN(ctx context.Context, n int) (time.Duration, error) {
	if err := validation.ValidatePermits(module, n); err != nil {
		return 0, err
	}

	// Check if context is already canceled
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	wait, err := tb.Reserve(n)
	if err != nil {
		return 0, err
	}

	if err := tb.sleep(ctx, wait); err != nil {
		tb.logger.Debug("wait canceled",
			zap.Int("permits", n),
			zap.Duration("wait", wait),
			zap.Error(err))
		return wait, err
	}
	return wait, nil
}

// TryAcquire takes one permit only if no wait is required.
func (tb *tokenBucket) TryAcquire() bool {
	ok, err := tb.TryAcquireN(context.Background(), 1, 0)
	return err == nil && ok
}

// TryAcquireN reserves n permits if the caller's turn starts within timeout.
// A negative timeout is treated as zero.
func (tb *tokenBucket) TryAcquireN(ctx context.Context, n int, timeout time.Duration) (bool, error) {
	if err := validation.ValidatePermits(module, n); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if timeout < 0 {
		timeout = 0
	}

	tb.mu.Lock()
	if tb.interval == 0 {
		tb.mu.Unlock()
		return false, errors.ErrRateNotSet
	}

	// Feasibility is decided before any resync or reservation so a
	// rejected call leaves the bucket exactly as it found it.
	now := tb.clock.Now()
	if tb.nextFree.After(now.Add(timeout)) {
		pending := tb.nextFree.Sub(now)
		tb.mu.Unlock()
		tb.logger.Debug("permits rejected",
			zap.Int("permits", n),
			zap.Duration("pending", pending),
			zap.Duration("timeout", timeout))
		return false, nil
	}

	wait := tb.reserveLocked(now, n)
	tb.mu.Unlock()

	if err := tb.sleep(ctx, wait); err != nil {
		tb.logger.Debug("wait canceled",
			zap.Int("permits", n),
			zap.Duration("wait", wait),
			zap.Error(err))
		return true, err
	}
	return true, nil
}

// Reserve reserves n permits and returns the wait before they may be used.
func (tb *tokenBucket) Reserve(n int) (time.Duration, error) {
	if err := validation.ValidatePermits(module, n); err != nil {
		return 0, err
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.interval == 0 {
		return 0, errors.ErrRateNotSet
	}
	return tb.reserveLocked(tb.clock.Now(), n), nil
}

// SetRate changes the permit rate.
func (tb *tokenBucket) SetRate(permitsPerSecond float64) error {
	if err := validation.ValidateRate(module, "rate", permitsPerSecond); err != nil {
		return err
	}

	tb.mu.Lock()
	// Credit idle time at the old rate before switching.
	tb.resync(tb.clock.Now())
	old := tb.rateLocked()
	tb.interval = float64(time.Second) / permitsPerSecond
	tb.mu.Unlock()

	tb.logger.Debug("rate changed",
		zap.Float64("from", old),
		zap.Float64("to", permitsPerSecond))
	return nil
}

// Rate returns the configured rate in permits per second.
func (tb *tokenBucket) Rate() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.rateLocked()
}

// SetBurst changes the bucket capacity.
func (tb *tokenBucket) SetBurst(maxPermits int) error {
	if maxPermits < 0 {
		return errors.NewArgumentError(module, "burst", maxPermits, "cannot be negative").
			WithHint("use 0 to disable bursting")
	}

	tb.mu.Lock()
	tb.resync(tb.clock.Now())
	old := tb.maxPermits
	tb.maxPermits = float64(maxPermits)
	if tb.storedPermits > tb.maxPermits {
		tb.storedPermits = tb.maxPermits
	}
	tb.mu.Unlock()

	tb.logger.Debug("burst changed",
		zap.Float64("from", old),
		zap.Int("to", maxPermits))
	return nil
}

// Burst returns the bucket capacity.
func (tb *tokenBucket) Burst() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return int(tb.maxPermits)
}

// StoredPermits returns the permits currently banked.
func (tb *tokenBucket) StoredPermits() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.resync(tb.clock.Now())
	return tb.storedPermits
}

// reserveLocked books n permits at now and returns how long the caller must
// wait for its turn. Banked permits are spent first; the remainder is
// converted to time and appended to nextFree for whoever comes next.
func (tb *tokenBucket) reserveLocked(now time.Time, n int) time.Duration {
	tb.resync(now)

	// nextFree >= now after resync
	wait := tb.nextFree.Sub(now)

	stored := math.Min(float64(n), tb.storedPermits)
	fresh := float64(n) - stored

	tb.nextFree = tb.nextFree.Add(tb.permitsToDuration(fresh))
	tb.storedPermits -= stored

	return wait
}

// resync banks permits generated since nextFree if the bucket has been idle.
func (tb *tokenBucket) resync(now time.Time) {
	if !now.After(tb.nextFree) {
		return
	}
	if tb.interval > 0 {
		generated := float64(now.Sub(tb.nextFree)) / tb.interval
		tb.storedPermits = math.Min(tb.maxPermits, tb.storedPermits+generated)
	}
	tb.nextFree = now
}

// permitsToDuration converts permits to time at the current rate,
// truncating to whole nanoseconds and saturating at the largest Duration.
func (tb *tokenBucket) permitsToDuration(permits float64) time.Duration {
	d := permits * tb.interval
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func (tb *tokenBucket) rateLocked() float64 {
	if tb.interval == 0 {
		return 0
	}
	return float64(time.Second) / tb.interval
}
