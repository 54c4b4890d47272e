package client

import "time"

// Stopper cancels a scheduled call. Stop reports whether the call was prevented.
type Stopper interface {
	Stop() bool
}

// Scheduler defers a call. Tests inject a manual clock.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Stopper
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}
