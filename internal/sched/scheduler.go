// Package sched provides cancellable deferred execution keyed by id.
// The reconciliation service uses it to hold fully closed trade groups
// through a grace window before removal, so late duplicate
// acknowledgements still resolve against known state.
package sched

import (
	"sync"
	"time"
)

// Scheduler defers one task per key. Scheduling an existing key
// replaces the pending task.
type Scheduler interface {
	Schedule(key string, delay time.Duration, task func())
	Cancel(key string) bool
	Stop()
}

// TimerScheduler runs tasks on real timers.
type TimerScheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewTimerScheduler creates a scheduler backed by time.AfterFunc.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[string]*time.Timer)}
}

// Schedule defers task by delay. A pending task under the same key is
// cancelled first.
func (s *TimerScheduler) Schedule(key string, delay time.Duration, task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.timers[key] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, key)
		stopped := s.stopped
		s.mu.Unlock()
		if !stopped {
			task()
		}
	})
}

// Cancel drops the pending task for a key, reporting whether one was
// pending.
func (s *TimerScheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[key]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.timers, key)
	return true
}

// Stop cancels every pending task. The scheduler accepts no further
// work afterwards.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}

// Pending returns the number of scheduled tasks.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
