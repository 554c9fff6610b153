package service

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Timer is a cancellable one-shot delay.
type Timer interface {
	// Stop cancels the timer. It reports false if the timer already fired
	// or was stopped before.
	Stop() bool
}

// Timers arms one-shot timers.
type Timers interface {
	AfterFunc(d time.Duration, f func()) Timer
}
