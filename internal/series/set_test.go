package series

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/rtscope/internal/core/messaging"
)

func msg(elapsed time.Duration, topic, payload string) messaging.Message {
	return messaging.Message{Elapsed: elapsed, Topic: topic, Payload: payload}
}

func TestFieldExtractor(t *testing.T) {
	tests := []struct {
		name     string
		index    int
		deadband float64
		scale    float64
		payload  string
		want     float64
		wantErr  bool
	}{
		{"first field", 0, 0, 0, "1.5,2,3", 1.5, false},
		{"inside deadband", 2, 0.4, 0, "1,2,-0.4", 0, false},
		{"outside deadband", 2, 0.4, 0, "1,2,0.41", 0.41, false},
		{"scaled", 1, 0, 10, "1,0.25", 2.5, false},
		{"missing field", 3, 0, 0, "1,2", 0, true},
		{"not a number", 0, 0, 0, "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := FieldExtractor(tt.index, tt.deadband, tt.scale)(msg(1500*time.Millisecond, "", tt.payload))
			if tt.wantErr {
				assert.ErrorIs(t, err, messaging.ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, p.Y, 1e-9)
			assert.Equal(t, 1.5, p.X)
		})
	}
}

func TestNewSet_Validation(t *testing.T) {
	_, err := NewSet(zerolog.Nop(), []Channel{{Title: ""}})
	assert.Error(t, err)

	_, err = NewSet(zerolog.Nop(), []Channel{{Title: "a"}, {Title: "a"}})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewSet(zerolog.Nop(), []Channel{{Title: "a", Mode: "fixed"}})
	assert.Error(t, err)

	_, err = NewSet(zerolog.Nop(), []Channel{{Title: "a", Field: -1}})
	assert.Error(t, err)
}

func TestSet_Observe(t *testing.T) {
	set, err := NewSet(zerolog.Nop(), []Channel{
		{Title: "force", Topic: "force", Field: 0},
		{Title: "grip", Topic: "grip", Field: 0, Mode: ModeBar},
		{Title: "z", Field: 2, Deadband: 0.4},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())

	set.Observe(msg(0, "force", "1,2,0.3"))
	set.Observe(msg(time.Second, "grip", "25"))
	set.Observe(msg(2*time.Second, "force", "3,4,5"))

	snaps := set.Snapshot()
	require.Len(t, snaps, 3)

	assert.Equal(t, []Point{{X: 0, Y: 1}, {X: 2, Y: 3}}, snaps[0].Points)
	assert.Equal(t, []Point{{X: 1, Y: 25}}, snaps[1].Points)
	assert.Equal(t, []Point{{X: 0, Y: 0}, {X: 2, Y: 5}}, snaps[2].Points)

	// "25" has no third field.
	assert.Equal(t, uint64(1), set.Errors()["z"])

	s, ok := set.Series("grip")
	require.True(t, ok)
	assert.Equal(t, ModeBar, s.Mode())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []Point{{X: 0, Y: 1.5}, {X: 0.25, Y: -2}}))
	assert.Equal(t, "x,y\n0,1.5\n0.25,-2\n", buf.String())
}

func TestExporter_Save(t *testing.T) {
	dir := t.TempDir()
	a := New("Force X", ModeRoll, 0, Range{})
	a.Add(Point{X: 1, Y: 2})
	b := New("grip/left", ModeBar, 0, Range{})

	exp := Exporter{
		Dir: dir,
		Now: func() time.Time { return time.Date(2026, 5, 4, 13, 7, 9, 0, time.Local) },
	}
	paths, err := exp.Save([]*Series{a, b})
	require.NoError(t, err)
	require.Len(t, paths, 2)

	assert.Equal(t, filepath.Join(dir, "20260504_13_07_09_Force_X_data.csv"), paths[0])
	assert.Equal(t, filepath.Join(dir, "20260504_13_07_09_grip_left_data.csv"), paths[1])

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "x,y\n1,2\n", string(data))

	data, err = os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "x,y\n", string(data))
}

func TestExporter_BadTemplate(t *testing.T) {
	exp := Exporter{Dir: t.TempDir(), Template: "{{ .Missing }}.csv"}
	_, err := exp.Save([]*Series{New("a", ModeRoll, 0, Range{})})
	assert.Error(t, err)
}

func TestSet_Reset(t *testing.T) {
	set, err := NewSet(zerolog.Nop(), DefaultChannels())
	require.NoError(t, err)

	set.Observe(msg(0, "", "1,2,3"))
	set.Reset()

	for _, snap := range set.Snapshot() {
		assert.True(t, snap.Empty(), snap.Title)
	}
}
