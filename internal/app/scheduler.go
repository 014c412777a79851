package app

import (
	"sync"
	"time"
)

// Scheduler arms one-shot end-of-quiz timers keyed by session. Deadlines are
// wall-clock timestamps: scheduling a key that already has a timer replaces
// it, and a deadline in the past fires immediately. Callbacks are expected to
// be idempotent (the quiz end transition no-ops on a phase check), so no
// cancellation path is needed.
type Scheduler struct {
	clock func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewScheduler() *Scheduler {
	return NewSchedulerWithClock(time.Now)
}

// NewSchedulerWithClock allows deterministic delays in tests.
func NewSchedulerWithClock(clock func() time.Time) *Scheduler {
	return &Scheduler{
		clock:  clock,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms fn to run at the given deadline, replacing any timer already
// armed for the key.
func (s *Scheduler) Schedule(key string, at time.Time, fn func()) {
	delay := at.Sub(s.clock())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[key]; ok {
		timer.Stop()
	}
	s.timers[key] = time.AfterFunc(delay, func() {
		s.forget(key)
		fn()
	})
}

// Pending reports how many timers are currently armed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, key)
}
