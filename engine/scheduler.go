package engine

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Clock is the scheduler's view of time
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers poll ticks
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock uses the wall clock
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Cycler runs one cycle
type Cycler interface {
	RunCycle(ctx context.Context) (*Report, error)
}

// Scheduler runs one cycle at start, then one per schedule trigger.
// Triggers are computed from the previous trigger, not from cycle
// completion; a trigger that falls due while a cycle is running is run
// as soon as that cycle returns.
type Scheduler struct {
	cycler   Cycler
	schedule cron.Schedule
	poll     time.Duration
	clock    Clock
	state    *State
}

// NewScheduler creates a Scheduler; state may be nil
func NewScheduler(cycler Cycler, schedule cron.Schedule, poll time.Duration, clock Clock, state *State) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	if poll <= 0 {
		poll = time.Minute
	}
	return &Scheduler{cycler: cycler, schedule: schedule, poll: poll, clock: clock, state: state}
}

// Run blocks until ctx is done and returns ctx.Err()
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.poll)
	defer ticker.Stop()

	trigger := s.clock.Now()
	next := s.runDue(ctx, trigger)

	for {
		select {
		case <-ctx.Done():
			log.Println("[scheduler] Shutting down")
			return ctx.Err()
		case <-ticker.C():
			for ctx.Err() == nil && !s.clock.Now().Before(next) {
				next = s.runDue(ctx, next)
			}
		}
	}
}

// runDue runs the cycle for trigger and returns the trigger after it
func (s *Scheduler) runDue(ctx context.Context, trigger time.Time) time.Time {
	// errors are reported by the cycle itself and never stop the loop
	s.cycler.RunCycle(ctx)

	next := s.schedule.Next(trigger)
	if s.state != nil {
		s.state.SetNextTrigger(next)
	}
	log.Printf("[scheduler] Next cycle at %s", next.Format(time.RFC3339))
	return next
}
