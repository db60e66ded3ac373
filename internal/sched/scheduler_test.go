package sched

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerSchedulerRunsTask(t *testing.T) {
	s := NewTimerScheduler()
	defer s.Stop()

	done := make(chan struct{})
	s.Schedule("k1", time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	assert.Equal(t, 0, s.Pending())
}

func TestTimerSchedulerCancel(t *testing.T) {
	s := NewTimerScheduler()
	defer s.Stop()

	var ran atomic.Bool
	s.Schedule("k1", 10*time.Millisecond, func() { ran.Store(true) })
	require.True(t, s.Cancel("k1"))
	assert.False(t, s.Cancel("k1"))

	time.Sleep(30 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestTimerSchedulerReplaceKey(t *testing.T) {
	s := NewTimerScheduler()
	defer s.Stop()

	var first, second atomic.Bool
	s.Schedule("k1", 5*time.Millisecond, func() { first.Store(true) })
	s.Schedule("k1", 5*time.Millisecond, func() { second.Store(true) })

	time.Sleep(30 * time.Millisecond)
	assert.False(t, first.Load())
	assert.True(t, second.Load())
}

func TestTimerSchedulerStop(t *testing.T) {
	s := NewTimerScheduler()

	var ran atomic.Bool
	s.Schedule("k1", 5*time.Millisecond, func() { ran.Store(true) })
	s.Stop()

	time.Sleep(30 * time.Millisecond)
	assert.False(t, ran.Load())
	assert.Equal(t, 0, s.Pending())

	// Stopped schedulers drop new work.
	s.Schedule("k2", time.Millisecond, func() { ran.Store(true) })
	time.Sleep(10 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestManualSchedulerAdvance(t *testing.T) {
	s := NewManualScheduler()

	var ran []string
	s.Schedule("k1", 5*time.Second, func() { ran = append(ran, "k1") })
	s.Schedule("k2", 10*time.Second, func() { ran = append(ran, "k2") })

	s.Advance(4 * time.Second)
	assert.Empty(t, ran)

	s.Advance(1 * time.Second)
	assert.Equal(t, []string{"k1"}, ran)

	s.Advance(5 * time.Second)
	assert.ElementsMatch(t, []string{"k1", "k2"}, ran)
	assert.Equal(t, 0, s.Pending())
}

func TestManualSchedulerCancel(t *testing.T) {
	s := NewManualScheduler()

	ran := false
	s.Schedule("k1", time.Second, func() { ran = true })
	require.True(t, s.Cancel("k1"))

	s.Advance(time.Minute)
	assert.False(t, ran)
}
