package workflow

import "time"

// Scheduler runs fn after d on another goroutine. The returned function
// cancels fn if it has not started yet.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (cancel func())
}

// TimerScheduler schedules with time.AfterFunc
type TimerScheduler struct{}

// NewTimerScheduler creates a Scheduler backed by runtime timers
func NewTimerScheduler() TimerScheduler {
	return TimerScheduler{}
}

// Schedule implements Scheduler
func (TimerScheduler) Schedule(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
