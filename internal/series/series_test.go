package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeRoll, m)

	m, err = ParseMode("bar")
	require.NoError(t, err)
	assert.Equal(t, ModeBar, m)

	_, err = ParseMode("fixed")
	assert.Error(t, err)
}

func TestSeries_RollWindow(t *testing.T) {
	s := New("x", ModeRoll, 2, Range{})
	for i := 0; i <= 10; i++ {
		s.Add(Point{X: float64(i) * 0.5, Y: float64(i)})
	}

	snap := s.Snapshot()
	require.NotEmpty(t, snap.Points)
	assert.Equal(t, 3.0, snap.Points[0].X, "points older than the window are hidden")
	assert.Equal(t, 5.0, snap.Last.X)
	assert.Len(t, snap.Points, 5)

	// Bounds cover everything retained, not just what is visible.
	assert.Equal(t, 0.0, snap.Min)
	assert.Equal(t, 10.0, snap.Max)
	assert.Equal(t, uint64(11), snap.Count)
	assert.Len(t, s.Points(), 11)
}

func TestSeries_RollTrimsRetained(t *testing.T) {
	s := New("x", ModeRoll, 1e9, Range{})
	for i := 0; i < MaxRetained+50; i++ {
		s.Add(Point{X: float64(i), Y: float64(i)})
	}

	pts := s.Points()
	require.Len(t, pts, MaxRetained)
	assert.Equal(t, 50.0, pts[0].X)

	snap := s.Snapshot()
	assert.Equal(t, 50.0, snap.Min)
	assert.Equal(t, float64(MaxRetained+49), snap.Max)
	assert.Equal(t, uint64(MaxRetained+50), snap.Count)
}

func TestSeries_Compress(t *testing.T) {
	s := New("c", ModeCompress, 1, Range{})
	for i := 0; i < 20; i++ {
		s.Add(Point{X: float64(i), Y: float64(-i)})
	}

	snap := s.Snapshot()
	assert.Len(t, snap.Points, 20)
	assert.Equal(t, -19.0, snap.Min)
	assert.Equal(t, 0.0, snap.Max)
}

func TestSeries_Bar(t *testing.T) {
	s := New("grip", ModeBar, 0, Range{Min: 0, Max: 50})
	s.Add(Point{X: 1, Y: 12})
	s.Add(Point{X: 2, Y: 30})

	snap := s.Snapshot()
	assert.Equal(t, []Point{{X: 2, Y: 30}}, snap.Points)
	assert.Equal(t, 30.0, snap.Min)
	assert.Equal(t, 30.0, snap.Max)
	assert.Equal(t, Range{Min: 0, Max: 50}, snap.YRange)
}

func TestSeries_EmptyAndReset(t *testing.T) {
	s := New("e", ModeRoll, 0, Range{})
	assert.True(t, s.Snapshot().Empty())

	s.Add(Point{X: 1, Y: 1})
	assert.False(t, s.Snapshot().Empty())

	s.Reset()
	snap := s.Snapshot()
	assert.True(t, snap.Empty())
	assert.Nil(t, snap.Points)
}
