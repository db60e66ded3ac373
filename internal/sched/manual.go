package sched

import (
	"sync"
	"time"
)

// ManualScheduler drives deferred tasks with virtual time, for
// deterministic tests instead of real sleeps.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Time
	tasks map[string]manualTask
}

type manualTask struct {
	due  time.Time
	task func()
}

// NewManualScheduler creates a manual scheduler starting at epoch.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{
		now:   time.Unix(0, 0),
		tasks: make(map[string]manualTask),
	}
}

// Schedule defers task by delay in virtual time.
func (s *ManualScheduler) Schedule(key string, delay time.Duration, task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[key] = manualTask{due: s.now.Add(delay), task: task}
}

// Cancel drops the pending task for a key.
func (s *ManualScheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[key]; !ok {
		return false
	}
	delete(s.tasks, key)
	return true
}

// Stop drops every pending task.
func (s *ManualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[string]manualTask)
}

// Advance moves virtual time forward and runs every task that came
// due, outside the lock.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	var due []func()
	for key, t := range s.tasks {
		if !t.due.After(s.now) {
			due = append(due, t.task)
			delete(s.tasks, key)
		}
	}
	s.mu.Unlock()

	for _, task := range due {
		task()
	}
}

// Pending returns the number of scheduled tasks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
