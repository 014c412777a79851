package app_test

import (
	"sync/atomic"
	"testing"
	"time"

	"quizbot/internal/app"
)

func TestSchedulerFiresPastDeadlineImmediately(t *testing.T) {
	sched := app.NewScheduler()
	fired := make(chan struct{})

	sched.Schedule("k", time.Now().Add(-time.Minute), func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("overdue deadline never fired")
	}
}

func TestSchedulerReplacesExistingTimer(t *testing.T) {
	sched := app.NewScheduler()
	var calls int32
	fired := make(chan struct{})

	sched.Schedule("k", time.Now().Add(time.Hour), func() {
		atomic.AddInt32(&calls, 1)
	})
	sched.Schedule("k", time.Now().Add(20*time.Millisecond), func() {
		atomic.AddInt32(&calls, 1)
		close(fired)
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("replacement timer never fired")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one firing, got %d", got)
	}
	if sched.Pending() != 0 {
		t.Fatalf("fired timer still pending: %d", sched.Pending())
	}
}

func TestSchedulerTracksPending(t *testing.T) {
	sched := app.NewScheduler()

	sched.Schedule("a", time.Now().Add(time.Hour), func() {})
	sched.Schedule("b", time.Now().Add(time.Hour), func() {})
	if got := sched.Pending(); got != 2 {
		t.Fatalf("expected 2 pending timers, got %d", got)
	}
	sched.Schedule("a", time.Now().Add(time.Hour), func() {})
	if got := sched.Pending(); got != 2 {
		t.Fatalf("re-arming the same key must not grow pending, got %d", got)
	}
}
