package timer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ayoisaiah/respawn/internal/loop"
	"github.com/ayoisaiah/respawn/internal/models"
)

const (
	DefaultTickInterval   = time.Second
	DefaultImminentWithin = 10
)

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	// OnChange runs after an evaluation that moved a timer.
	OnChange func(TickResult)
	// OnFinish runs once for every timer that completes, after OnChange.
	OnFinish       func(models.Timer)
	Interval       time.Duration
	ImminentWithin int
}

// Scheduler re-evaluates every running timer on its own ticker. Ticks are
// posted to the dispatcher so evaluations never run concurrently with
// other session work.
type Scheduler struct {
	clock    clockwork.Clock
	registry *Registry
	dispatch loop.Dispatcher
	active   map[string]chan struct{}
	opts     SchedulerOptions
	mu       sync.Mutex
}

// NewScheduler returns a scheduler for timers held in registry.
func NewScheduler(
	clock clockwork.Clock,
	registry *Registry,
	dispatch loop.Dispatcher,
	opts SchedulerOptions,
) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultTickInterval
	}

	if opts.ImminentWithin <= 0 {
		opts.ImminentWithin = DefaultImminentWithin
	}

	return &Scheduler{
		clock:    clock,
		registry: registry,
		dispatch: dispatch,
		opts:     opts,
		active:   make(map[string]chan struct{}),
	}
}

// Schedule starts periodic evaluation of a timer. Scheduling a timer that
// already has a ticker is a no-op.
func (s *Scheduler) Schedule(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[id]; ok {
		return
	}

	stop := make(chan struct{})
	s.active[id] = stop

	ticker := s.clock.NewTicker(s.opts.Interval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				s.dispatch.Dispatch(func() {
					s.Evaluate(id)
				})
			}
		}
	}()
}

// Scheduled reports whether a timer currently has a ticker.
func (s *Scheduler) Scheduled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.active[id]

	return ok
}

// Evaluate performs one evaluation of a timer and runs its side effects. It
// must be called from the session loop.
func (s *Scheduler) Evaluate(id string) TickResult {
	res, err := s.registry.Tick(id, s.opts.ImminentWithin)
	if err != nil {
		s.Cancel(id)
		return res
	}

	if res.Timer.State != models.Running {
		s.Cancel(id)
	}

	if !res.Changed {
		return res
	}

	if s.opts.OnChange != nil {
		s.opts.OnChange(res)
	}

	if res.Finished {
		slog.Info(
			"timer finished",
			slog.String("id", id),
			slog.String("location", res.Timer.Location.String()),
			slog.String("origin", string(res.Timer.Origin)),
		)

		if s.opts.OnFinish != nil {
			s.opts.OnFinish(res.Timer)
		}
	}

	return res
}

// Cancel stops the ticker of a timer. Cancelling an unscheduled timer is a
// no-op.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stop, ok := s.active[id]; ok {
		close(stop)
		delete(s.active, id)
	}
}

// CancelAll stops every ticker.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, stop := range s.active {
		close(stop)
		delete(s.active, id)
	}
}
