// Package series turns decoded messages into 2D series for plotting and
// export.
package series

import (
	"fmt"
	"math"
	"sync"
)

// Mode selects how a series retains points.
type Mode string

const (
	// ModeRoll shows the last Window x-units and trims retained points to
	// MaxRetained.
	ModeRoll Mode = "roll"
	// ModeCompress keeps and shows every point.
	ModeCompress Mode = "compress"
	// ModeBar keeps only the most recent value.
	ModeBar Mode = "bar"
)

const (
	// DefaultWindow is the visible span of a rolling series, in x units (seconds).
	DefaultWindow = 10.0

	// MaxRetained bounds a rolling series; older points are dropped past it.
	MaxRetained = 1000
)

// ParseMode resolves a configured mode name. Empty means roll.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeRoll:
		return ModeRoll, nil
	case ModeCompress, ModeBar:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown series mode %q", s)
	}
}

// Point is one sample.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Range is a fixed axis range. The zero value means auto-scale.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// IsZero reports whether the range is unset.
func (r Range) IsZero() bool {
	return r.Min == 0 && r.Max == 0
}

// Series is a concurrency-safe sequence of points.
type Series struct {
	title  string
	mode   Mode
	window float64
	yRange Range

	mu     sync.RWMutex
	points []Point
	min    float64
	max    float64
	count  uint64
}

// New creates an empty series. A non-positive window uses DefaultWindow.
func New(title string, mode Mode, window float64, yRange Range) *Series {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Series{
		title:  title,
		mode:   mode,
		window: window,
		yRange: yRange,
		min:    math.Inf(1),
		max:    math.Inf(-1),
	}
}

func (s *Series) Title() string { return s.title }

func (s *Series) Mode() Mode { return s.mode }

// Add appends p.
func (s *Series) Add(p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	switch s.mode {
	case ModeBar:
		s.points = append(s.points[:0], p)
		s.min, s.max = p.Y, p.Y
		return
	case ModeRoll:
		s.points = append(s.points, p)
		if len(s.points) > MaxRetained {
			s.points = append(s.points[:0], s.points[len(s.points)-MaxRetained:]...)
			s.recomputeBounds()
			return
		}
	default:
		s.points = append(s.points, p)
	}
	s.min = math.Min(s.min, p.Y)
	s.max = math.Max(s.max, p.Y)
}

func (s *Series) recomputeBounds() {
	s.min, s.max = math.Inf(1), math.Inf(-1)
	for _, p := range s.points {
		s.min = math.Min(s.min, p.Y)
		s.max = math.Max(s.max, p.Y)
	}
}

// Reset drops every point.
func (s *Series) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = nil
	s.count = 0
	s.min, s.max = math.Inf(1), math.Inf(-1)
}

// Snapshot is an immutable view of a series for renderers.
type Snapshot struct {
	Title  string  `json:"title"`
	Mode   Mode    `json:"mode"`
	Points []Point `json:"points"` // visible points, oldest first
	Last   Point   `json:"last"`
	Min    float64 `json:"min"` // over retained points
	Max    float64 `json:"max"`
	Count  uint64  `json:"count"` // points ever added
	YRange Range   `json:"y_range"`
}

// Empty reports whether no point has been added.
func (s Snapshot) Empty() bool {
	return s.Count == 0
}

// Snapshot copies the visible points. A rolling series shows points within
// Window of the newest x.
func (s *Series) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Title:  s.title,
		Mode:   s.mode,
		Count:  s.count,
		YRange: s.yRange,
	}
	if len(s.points) == 0 {
		return snap
	}

	visible := s.points
	last := s.points[len(s.points)-1]
	if s.mode == ModeRoll {
		from := last.X - s.window
		i := len(visible) - 1
		for i > 0 && visible[i-1].X >= from {
			i--
		}
		visible = visible[i:]
	}

	snap.Points = make([]Point, len(visible))
	copy(snap.Points, visible)
	snap.Last = last
	snap.Min = s.min
	snap.Max = s.max
	return snap
}

// Points returns a copy of every retained point, which is what gets exported.
func (s *Series) Points() []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}
