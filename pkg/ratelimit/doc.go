/*
Package ratelimit groups the smoothrate limiters.

  - smooth: Smoothed-burst token bucket with lazy refill
  - schedule: Applies rate plans to a smooth limiter on a cron calendar

The smooth limiter banks up to Burst permits while idle. A request larger than
what is banked is admitted at once and its shortfall is charged to whoever
comes next:

	limiter := smooth.New(10, 5) // 10 permits/sec, burst of 5
	limiter.Reserve(8)           // returns 0, next caller waits 300ms

Rates can be changed at any time, directly or through a schedule:

	plan, _ := schedule.LoadPlanFile("rates.yaml")
	s, _ := schedule.New(limiter, plan, schedule.Config{})
	s.Start()
	defer s.Stop()

All limiters are safe for concurrent use and integrate with the context
package for cancellation and timeouts.
*/
package ratelimit
