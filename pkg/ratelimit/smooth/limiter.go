package smooth

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/smoothrate/pkg/common/errors"
)

const module = "smooth"

// Limiter hands out permits at a configured rate using a token bucket that
// refills lazily. Banked permits are spent without waiting; a shortfall is
// paid for by pushing the next-free instant forward, so later callers wait
// for the debt of earlier ones.
type Limiter interface {
	// Acquire reserves one permit and blocks until it is available.
	// It returns the wait that was reserved.
	Acquire(ctx context.Context) (time.Duration, error)

	// AcquireN reserves n permits and blocks until they are available.
	// If ctx is done before the wait elapses it returns the reserved wait
	// and ctx.Err(); the reservation is kept.
	AcquireN(ctx context.Context, n int) (time.Duration, error)

	// TryAcquire takes one permit only if no wait is required.
	TryAcquire() bool

	// TryAcquireN reserves n permits if the caller's turn starts within
	// timeout, then blocks like AcquireN. Otherwise it returns false and
	// leaves the limiter untouched.
	TryAcquireN(ctx context.Context, n int, timeout time.Duration) (bool, error)

	// Reserve reserves n permits and returns how long the caller must wait
	// before using them. It never blocks.
	Reserve(n int) (time.Duration, error)

	// SetRate changes the permit rate. Stored permits and outstanding
	// reservations are not rescaled.
	SetRate(permitsPerSecond float64) error

	// Rate returns the configured rate in permits per second, or 0 if unset.
	Rate() float64

	// SetBurst changes the bucket capacity, trimming stored permits to fit.
	SetBurst(maxPermits int) error

	// Burst returns the bucket capacity.
	Burst() int

	// StoredPermits returns the permits currently banked.
	StoredPermits() float64
}

// Clock provides the current time. It can be mocked for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time. The returned values
// carry a monotonic reading, so wall clock steps do not affect waits.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Config holds configuration options for creating a new Limiter.
type Config struct {
	// Rate is the number of permits generated per second.
	// Zero leaves the rate unset: acquisitions fail with errors.ErrRateNotSet
	// until SetRate is called.
	Rate float64

	// Burst is the maximum number of permits that can be banked.
	// Zero disables bursting.
	Burst int

	// Clock provides the current time. If nil, SystemClock is used.
	Clock Clock

	// InitialPermits is the number of permits to start with.
	// If negative, starts with full capacity.
	InitialPermits int

	// Logger receives debug events. If nil, logging is disabled.
	Logger *zap.Logger
}

// tokenBucket implements Limiter.
type tokenBucket struct {
	mu            sync.Mutex
	interval      float64 // nanoseconds per permit, 0 while the rate is unset
	maxPermits    float64
	storedPermits float64
	nextFree      time.Time

	clock  Clock
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a limiter and panics on invalid parameters.
// Prefer NewSafe outside of examples and tests.
func New(rate float64, burst int) Limiter {
	limiter, err := NewSafe(rate, burst)
	if err != nil {
		panic(err)
	}
	return limiter
}

// NewSafe creates a new limiter with validation that returns an error instead of panicking.
// The bucket starts full. This is the recommended way to create limiters for production use.
func NewSafe(rate float64, burst int) (Limiter, error) {
	if rate <= 0 || math.IsNaN(rate) {
		return nil, errors.NewValidationError(module, "rate", rate, "rate must be positive").
			WithHint("use NewWithConfigSafe with Rate 0 to defer configuring the rate")
	}
	return NewWithConfigSafe(Config{
		Rate:           rate,
		Burst:          burst,
		Clock:          SystemClock{},
		InitialPermits: -1,
	})
}

// NewWithConfigSafe creates a new limiter with validation that returns an error instead of panicking.
func NewWithConfigSafe(config Config) (Limiter, error) {
	if config.Rate < 0 || math.IsNaN(config.Rate) || math.IsInf(config.Rate, 0) {
		return nil, errors.NewValidationError(module, "rate", config.Rate, "rate must be a non-negative finite number").
			WithHint("use 0 to leave the rate unset or a positive value")
	}
	if config.Burst < 0 {
		return nil, errors.NewValidationError(module, "burst", config.Burst, "burst cannot be negative").
			WithHint("burst determines how many permits can be spent without waiting")
	}
	if config.Clock == nil {
		config.Clock = SystemClock{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	initial := float64(config.InitialPermits)
	if config.InitialPermits < 0 || config.InitialPermits > config.Burst {
		initial = float64(config.Burst)
	}

	var interval float64
	if config.Rate > 0 {
		interval = float64(time.Second) / config.Rate
	}

	return &tokenBucket{
		interval:      interval,
		maxPermits:    float64(config.Burst),
		storedPermits: initial,
		nextFree:      config.Clock.Now(),
		clock:         config.Clock,
		logger:        config.Logger.With(zap.String("component", "smooth")),
		sleep:         sleepContext,
	}, nil
}

// sleepContext blocks for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
