/*
Package schedule changes a limiter's rate on a calendar.

A Plan lists named entries, each with a cron expression and the rate (and
optionally the burst) to switch to when it fires. Plans are usually kept in
YAML:

	location: UTC
	entries:
	  - name: business-hours
	    cron: "0 0 9 * * 1-5"
	    rate: 100
	    burst: 200
	  - name: night
	    cron: "0 0 18 * * *"
	    rate: 10

Cron expressions take five fields, an optional leading seconds field, or a
descriptor such as @hourly or @every 15m.

	plan, err := schedule.LoadPlanFile("rates.yaml")
	if err != nil {
		return err
	}
	s, err := schedule.New(limiter, plan, schedule.Config{Logger: logger})
	if err != nil {
		return err
	}
	_ = s.Apply("night")
	s.Start()
	defer s.Stop()

Rate changes go through Limiter.SetRate, so idle credit earned at the old
rate is kept and outstanding reservations are not rescaled.
*/
package schedule
