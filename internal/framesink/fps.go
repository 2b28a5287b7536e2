package framesink

import (
	"sync"
	"time"
)

// FPSMeter counts ticks and recomputes the rate once a full second has passed.
// Between recomputations FPS reports the previous window's value.
type FPSMeter struct {
	mu     sync.Mutex
	now    func() time.Time
	start  time.Time
	frames int
	fps    float64
}

func NewFPSMeter(now func() time.Time) *FPSMeter {
	if now == nil {
		now = time.Now
	}
	return &FPSMeter{now: now, start: now()}
}

// Tick counts one frame.
func (m *FPSMeter) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.frames++
	now := m.now()
	if elapsed := now.Sub(m.start); elapsed > time.Second {
		m.fps = float64(m.frames) / elapsed.Seconds()
		m.frames = 0
		m.start = now
	}
}

// FPS returns the rate measured over the last completed window.
func (m *FPSMeter) FPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fps
}
