package testutil

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestEventually(t *testing.T) {
	t.Run("condition met immediately", func(t *testing.T) {
		called := false
		Eventually(t, func() bool {
			called = true
			return true
		}, 100*time.Millisecond, 10*time.Millisecond)

		if !called {
			t.Error("condition function should be called")
		}
	})

	t.Run("condition met after delay", func(t *testing.T) {
		var counter int32
		go func() {
			time.Sleep(50 * time.Millisecond)
			atomic.StoreInt32(&counter, 1)
		}()

		Eventually(t, func() bool {
			return atomic.LoadInt32(&counter) == 1
		}, time.Second, 10*time.Millisecond)
	})
}

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	AssertEqual(t, clock.Now(), start)

	clock.Advance(1500 * time.Millisecond)
	AssertEqual(t, clock.Now(), start.Add(1500*time.Millisecond))

	later := start.Add(time.Hour)
	clock.Set(later)
	AssertEqual(t, clock.Now(), later)
}

func TestNewMockClockZero(t *testing.T) {
	before := time.Now()
	clock := NewMockClock(time.Time{})
	if clock.Now().Before(before) {
		t.Errorf("zero start should default to now, got %v", clock.Now())
	}
}

func TestAssertDurationNear(t *testing.T) {
	AssertDurationNear(t, 101*time.Millisecond, 100*time.Millisecond, 2*time.Millisecond)
	AssertDurationNear(t, 99*time.Millisecond, 100*time.Millisecond, 2*time.Millisecond)
	AssertInDelta(t, 1.0005, 1.0, 0.001)
}
