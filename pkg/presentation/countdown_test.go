package presentation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/freelanceflow/freelanceflow-backend/pkg/windows"
)

type fakeClock struct {
	mutex  sync.Mutex
	now    time.Time
	ticks  chan time.Time
	ticker *fakeTicker
}

type fakeTicker struct {
	ticks   chan time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ticks }
func (t *fakeTicker) Stop()               { t.stopped = true }

func newFakeClock(at time.Time) *fakeClock {
	return &fakeClock{now: at, ticks: make(chan time.Time)}
}

func (c *fakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.ticker = &fakeTicker{ticks: c.ticks}
	return c.ticker
}

// Advance moves the clock and blocks until the loop took the tick
func (c *fakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	c.now = c.now.Add(d)
	at := c.now
	c.mutex.Unlock()
	c.ticks <- at
}

func TestWatch(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	rendered := make(chan windows.Countdown)

	done := make(chan error, 1)
	go func() {
		done <- Watch(context.Background(), clock, start.Add(2*time.Second+500*time.Millisecond), time.Second,
			func(c windows.Countdown) { rendered <- c })
	}()

	want := []int64{2, 1, 0}
	for i, seconds := range want {
		if i > 0 {
			clock.Advance(time.Second)
		}
		got := <-rendered
		if got.SecondsLeft != seconds {
			t.Errorf("tick %d: %d seconds left, want %d", i, got.SecondsLeft, seconds)
		}
		if got.IsNearExpiry != (seconds > 0) || got.IsExpired != (seconds == 0) {
			t.Errorf("tick %d: unexpected flags %+v", i, got)
		}
	}

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if !clock.ticker.stopped {
		t.Error("ticker not stopped")
	}
}

func TestWatch_StopsOnCancel(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, clock, start.Add(time.Hour), time.Second, func(windows.Countdown) {})
	}()

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestWatcher_RefreshesUntilFinal(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)

	views := []*windows.View{
		{Phase: windows.PhaseActive, WindowEnd: start.Add(time.Minute), ServerTime: start.Add(10 * time.Second)},
		{Phase: windows.PhaseAssigned, WindowEnd: start.Add(time.Minute), ServerTime: start.Add(12 * time.Second)},
	}
	fetches := 0

	type frame struct {
		phase   windows.Phase
		seconds int64
	}
	rendered := make(chan frame)

	watcher := Watcher{
		Clock:    clock,
		Interval: time.Second,
		Refresh:  2 * time.Second,
		Fetch: func(context.Context) (*windows.View, error) {
			view := views[fetches]
			fetches++
			return view, nil
		},
		Render: func(view *windows.View, c windows.Countdown) {
			rendered <- frame{phase: view.Phase, seconds: c.SecondsLeft}
		},
	}

	done := make(chan error, 1)
	go func() { done <- watcher.Run(context.Background()) }()

	// the server is 10 seconds ahead
	if got := <-rendered; got != (frame{windows.PhaseActive, 50}) {
		t.Errorf("first frame %+v", got)
	}

	clock.Advance(time.Second)
	if got := <-rendered; got != (frame{windows.PhaseActive, 49}) {
		t.Errorf("second frame %+v", got)
	}

	clock.Advance(time.Second)
	if got := <-rendered; got.phase != windows.PhaseAssigned {
		t.Errorf("refresh didn't pick up the assignment: %+v", got)
	}

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if fetches != 2 {
		t.Errorf("fetched %d times, want 2", fetches)
	}
}

func TestFormatCountdown(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{299, "4:59"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
	}

	for _, tt := range tests {
		if got := FormatCountdown(windows.Countdown{SecondsLeft: tt.seconds}); got != tt.want {
			t.Errorf("FormatCountdown(%d) = %s, want %s", tt.seconds, got, tt.want)
		}
	}
}
