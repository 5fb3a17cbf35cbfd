package syncengine

import "time"

// Clock abstracts wall time, one-shot timers and the periodic ticker so
// the cooldown window and the pull loop can be tested without sleeping.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules f after d and returns a stop function.
	AfterFunc(d time.Duration, f func()) (stop func())
	// NewTicker returns a channel delivering ticks every d and a stop
	// function releasing its resources.
	NewTicker(d time.Duration) (ticks <-chan time.Time, stop func())
}

type realClock struct{}

func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

func (realClock) NewTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}
