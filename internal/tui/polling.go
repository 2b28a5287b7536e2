package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// DefaultRenderInterval is used when Options.Interval is unset.
const DefaultRenderInterval = 50 * time.Millisecond

// renderTickMsg is sent to trigger the next redraw.
type renderTickMsg time.Time

// scheduleRender returns a command that schedules the next redraw.
func scheduleRender(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return renderTickMsg(t)
	})
}

// subscriberDoneMsg is sent once the subscriber's loop has exited.
type subscriberDoneMsg struct{}

// waitDone returns a command that blocks until done is closed.
func waitDone(done <-chan struct{}) tea.Cmd {
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		<-done
		return subscriberDoneMsg{}
	}
}

// exportedMsg reports the result of a CSV export.
type exportedMsg struct {
	paths []string
	err   error
}

// rateMeter turns a running counter into a per-second rate, recomputed once
// a full second has passed.
type rateMeter struct {
	start time.Time
	base  uint64
	rate  float64
}

func (r *rateMeter) update(now time.Time, count uint64) float64 {
	if r.start.IsZero() {
		r.start, r.base = now, count
		return r.rate
	}
	if elapsed := now.Sub(r.start); elapsed >= time.Second {
		r.rate = float64(count-r.base) / elapsed.Seconds()
		r.start, r.base = now, count
	}
	return r.rate
}
