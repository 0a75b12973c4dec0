package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vnykmshr/smoothrate/pkg/common/errors"
	"github.com/vnykmshr/smoothrate/pkg/metrics"
	"github.com/vnykmshr/smoothrate/pkg/ratelimit/smooth"
)

// Scheduler switches a limiter between the rates of a Plan as its cron
// expressions fire.
type Scheduler interface {
	// Start begins firing entries in the background. Nothing is applied at
	// start; call Apply to set an initial rate.
	Start()

	// Stop halts firing and returns a context that is done once any
	// in-flight application has finished.
	Stop() context.Context

	// Apply immediately applies the named entry to the limiter.
	Apply(name string) error

	// Next returns the next time the named entry will fire.
	Next(name string) (time.Time, error)

	// Entries reports the state of every entry in plan order.
	Entries() []EntryStatus
}

// EntryStatus describes one scheduled entry.
type EntryStatus struct {
	Entry
	Next        time.Time
	LastApplied time.Time
	LastError   error
}

// Config configures a Scheduler.
type Config struct {
	// Logger receives application events. If nil, logging is disabled.
	Logger *zap.Logger

	// Metrics controls the applied/failed counters.
	Metrics metrics.Config
}

type scheduledEntry struct {
	entry    Entry
	schedule cron.Schedule

	lastApplied time.Time
	lastErr     error
}

type scheduler struct {
	limiter  smooth.Limiter
	cron     *cron.Cron
	location *time.Location
	logger   *zap.Logger
	registry *metrics.Registry

	mu      sync.Mutex
	entries map[string]*scheduledEntry
	order   []string
}

// New builds a Scheduler that drives limiter according to plan.
func New(limiter smooth.Limiter, plan Plan, config Config) (Scheduler, error) {
	if limiter == nil {
		return nil, errors.NewValidationError(module, "limiter", nil, "cannot be nil")
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	loc, err := plan.location()
	if err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	s := &scheduler{
		limiter:  limiter,
		location: loc,
		logger:   config.Logger.With(zap.String("component", "schedule")),
		entries:  make(map[string]*scheduledEntry, len(plan.Entries)),
	}
	if config.Metrics.Enabled {
		s.registry = metrics.Shared(config.Metrics)
	}

	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger{s.logger.Sugar()}),
		cron.WithChain(cron.Recover(cronLogger{s.logger.Sugar()})),
	)

	for _, e := range plan.Entries {
		sched, err := parser.Parse(e.Cron)
		if err != nil {
			return nil, errors.NewValidationError(module, e.Name+".cron", e.Cron, err.Error())
		}

		name := e.Name
		s.cron.Schedule(sched, cron.FuncJob(func() {
			_ = s.Apply(name)
		}))

		s.entries[name] = &scheduledEntry{entry: e, schedule: sched}
		s.order = append(s.order, name)
	}

	return s, nil
}

// Start begins firing entries.
func (s *scheduler) Start() {
	s.logger.Info("schedule started", zap.Int("entries", len(s.order)))
	s.cron.Start()
}

// Stop halts firing.
func (s *scheduler) Stop() context.Context {
	ctx := s.cron.Stop()
	s.logger.Info("schedule stopped")
	return ctx
}

// Apply sets the limiter to the named entry's rate and burst.
func (s *scheduler) Apply(name string) error {
	s.mu.Lock()
	se, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return errors.NewValidationError(module, "name", name, "no such entry")
	}

	err := s.applyEntry(se.entry)

	s.mu.Lock()
	se.lastErr = err
	if err == nil {
		se.lastApplied = time.Now()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("schedule entry failed", zap.String("entry", name), zap.Error(err))
		if s.registry != nil {
			s.registry.ScheduleFailed.WithLabelValues(name).Inc()
		}
		return err
	}

	fields := []zap.Field{zap.String("entry", name), zap.Float64("rate", se.entry.Rate)}
	if se.entry.Burst != nil {
		fields = append(fields, zap.Int("burst", *se.entry.Burst))
	}
	s.logger.Info("schedule entry applied", fields...)
	if s.registry != nil {
		s.registry.ScheduleApplied.WithLabelValues(name).Inc()
	}
	return nil
}

func (s *scheduler) applyEntry(e Entry) error {
	if err := s.limiter.SetRate(e.Rate); err != nil {
		return fmt.Errorf("set rate for %q: %w", e.Name, err)
	}
	if e.Burst != nil {
		if err := s.limiter.SetBurst(*e.Burst); err != nil {
			return fmt.Errorf("set burst for %q: %w", e.Name, err)
		}
	}
	return nil
}

// Next returns the next firing time of the named entry.
func (s *scheduler) Next(name string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	se, ok := s.entries[name]
	if !ok {
		return time.Time{}, errors.NewValidationError(module, "name", name, "no such entry")
	}
	return se.schedule.Next(time.Now().In(s.location)), nil
}

// Entries reports every entry in plan order.
func (s *scheduler) Entries() []EntryStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().In(s.location)
	out := make([]EntryStatus, 0, len(s.order))
	for _, name := range s.order {
		se := s.entries[name]
		out = append(out, EntryStatus{
			Entry:       se.entry,
			Next:        se.schedule.Next(now),
			LastApplied: se.lastApplied,
			LastError:   se.lastErr,
		})
	}
	return out
}

// cronLogger routes cron's internal logging to zap.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
