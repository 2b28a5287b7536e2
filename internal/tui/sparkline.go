package tui

import (
	"math"
	"strings"

	"github.com/hay-kot/rtscope/internal/series"
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// sparkline renders points as one row of block characters, width columns
// wide. Points are bucketed by x so gaps in time stay visible; each column
// shows the mean of its bucket. Values are scaled to [lo, hi] and clamped.
func sparkline(points []series.Point, width int, lo, hi float64) string {
	if width <= 0 || len(points) == 0 {
		return ""
	}

	x0, x1 := points[0].X, points[len(points)-1].X
	sums := make([]float64, width)
	counts := make([]int, width)
	for _, p := range points {
		col := width - 1
		if span := x1 - x0; span > 0 {
			col = int((p.X - x0) / span * float64(width-1))
		}
		col = min(max(col, 0), width-1)
		sums[col] += p.Y
		counts[col]++
	}

	var b strings.Builder
	b.Grow(width * 3)
	for i := range width {
		if counts[i] == 0 {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(sparkRune(sums[i]/float64(counts[i]), lo, hi))
	}
	return b.String()
}

func sparkRune(v, lo, hi float64) rune {
	if hi <= lo || math.IsNaN(v) {
		return sparkRunes[len(sparkRunes)/2]
	}
	f := (v - lo) / (hi - lo)
	f = math.Min(math.Max(f, 0), 1)
	return sparkRunes[int(math.Round(f*float64(len(sparkRunes)-1)))]
}

// bounds picks the axis range for a snapshot: the configured range when set,
// otherwise the observed min and max.
func bounds(s series.Snapshot) (float64, float64) {
	if !s.YRange.IsZero() {
		return s.YRange.Min, s.YRange.Max
	}
	if s.Empty() || math.IsInf(s.Min, 0) {
		return 0, 1
	}
	if s.Min == s.Max {
		return s.Min - 1, s.Max + 1
	}
	return s.Min, s.Max
}

// fraction maps v into [0, 1] over [lo, hi] for bar rendering.
func fraction(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return math.Min(math.Max((v-lo)/(hi-lo), 0), 1)
}
