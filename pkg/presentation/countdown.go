package presentation

import (
	"context"
	"fmt"
	"time"

	"github.com/freelanceflow/freelanceflow-backend/pkg/windows"
)

// Watch renders the countdown to windowEnd on every tick until the window expired or ctx is done
func Watch(ctx context.Context, clock Clock, windowEnd time.Time, interval time.Duration, render func(windows.Countdown)) error {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		countdown := windows.TimeRemaining(windowEnd, clock.Now())
		render(countdown)
		if countdown.IsExpired {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
		}
	}
}

// Watcher follows a window through polling. The countdown is recomputed locally on every tick,
// the view itself is only fetched again every Refresh.
type Watcher struct {
	Clock    Clock
	Interval time.Duration
	Refresh  time.Duration
	Fetch    func(ctx context.Context) (*windows.View, error)
	Render   func(view *windows.View, countdown windows.Countdown)
}

// Run renders until the window reached a final phase or ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	ticker := w.Clock.NewTicker(w.Interval)
	defer ticker.Stop()

	var view *windows.View
	var skew time.Duration
	var fetchedAt time.Time

	for {
		if view == nil || w.Clock.Now().Sub(fetchedAt) >= w.Refresh {
			fetched, err := w.Fetch(ctx)
			if err != nil {
				return err
			}

			view = fetched
			fetchedAt = w.Clock.Now()
			// countdowns follow the server's clock
			skew = view.ServerTime.Sub(fetchedAt)
		}

		w.Render(view, windows.TimeRemaining(view.WindowEnd, w.Clock.Now().Add(skew)))
		if IsFinal(view.Phase) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
		}
	}
}

// IsFinal reports whether a phase can't change anymore
func IsFinal(phase windows.Phase) bool {
	switch phase {
	case windows.PhaseAssigned, windows.PhaseCancelled, windows.PhaseSuperseded:
		return true
	}
	return false
}

// FormatCountdown renders the seconds left as m:ss or h:mm:ss
func FormatCountdown(countdown windows.Countdown) string {
	s := countdown.SecondsLeft
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s%3600/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
