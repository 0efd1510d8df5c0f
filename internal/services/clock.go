package services

import "time"

// CancelFunc cancels a scheduled callback. It reports whether the callback
// was cancelled before it fired.
type CancelFunc func() bool

// Clock abstracts time and single-shot scheduling so the auto-save engine
// can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
	// After schedules fn to run once after d. The returned CancelFunc must
	// be safe to call more than once.
	After(d time.Duration, fn func()) CancelFunc
}

type systemClock struct{}

// SystemClock returns the wall-clock backed Clock used in production
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func (systemClock) After(d time.Duration, fn func()) CancelFunc {
	timer := time.AfterFunc(d, fn)
	return timer.Stop
}
