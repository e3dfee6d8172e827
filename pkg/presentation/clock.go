package presentation

import "time"

// Clock is the time source of the countdown loop
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks like time.Ticker
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock is the wall clock
type RealClock struct{}

// Now returns time.Now
func (RealClock) Now() time.Time {
	return time.Now()
}

// NewTicker returns a time.Ticker backed Ticker
func (RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(d)}
}

type realTicker struct {
	ticker *time.Ticker
}

func (t *realTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t *realTicker) Stop() {
	t.ticker.Stop()
}
