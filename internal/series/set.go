package series

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/hay-kot/rtscope/internal/core/messaging"
)

// Channel configures one plotted series.
type Channel struct {
	Title string `yaml:"title" json:"title"`
	// Topic restricts the channel to matching message topics. Empty matches all.
	Topic    string  `yaml:"topic" json:"topic,omitempty"`
	Field    int     `yaml:"field" json:"field"`
	Mode     Mode    `yaml:"mode" json:"mode"`
	Window   float64 `yaml:"window" json:"window,omitempty"`
	Deadband float64 `yaml:"deadband" json:"deadband,omitempty"`
	Scale    float64 `yaml:"scale" json:"scale,omitempty"`
	YRange   Range   `yaml:"y_range" json:"y_range,omitempty"`
}

// DefaultChannels plots the first three fields as X, Y and Z, with a small
// deadband on Z.
func DefaultChannels() []Channel {
	return []Channel{
		{Title: "X", Field: 0, Mode: ModeRoll, YRange: Range{Min: -10, Max: 10}},
		{Title: "Y", Field: 1, Mode: ModeRoll},
		{Title: "Z", Field: 2, Mode: ModeRoll, Deadband: 0.4},
	}
}

type entry struct {
	ch      Channel
	series  *Series
	extract Extractor
	errors  atomic.Uint64
}

// Set feeds several series from one subscriber. Observe is meant to be
// registered as a subscriber observer; Snapshot may be called concurrently.
type Set struct {
	log     zerolog.Logger
	entries []*entry
}

// NewSet builds a set from channel configs. Titles must be unique.
func NewSet(log zerolog.Logger, channels []Channel) (*Set, error) {
	s := &Set{log: log}
	seen := make(map[string]bool, len(channels))

	for i, ch := range channels {
		if ch.Title == "" {
			return nil, fmt.Errorf("channel %d: empty title", i)
		}
		if seen[ch.Title] {
			return nil, fmt.Errorf("channel %q: duplicate title", ch.Title)
		}
		seen[ch.Title] = true

		mode, err := ParseMode(string(ch.Mode))
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", ch.Title, err)
		}
		if ch.Field < 0 {
			return nil, fmt.Errorf("channel %q: negative field index", ch.Title)
		}
		ch.Mode = mode

		s.entries = append(s.entries, &entry{
			ch:      ch,
			series:  New(ch.Title, mode, ch.Window, ch.YRange),
			extract: FieldExtractor(ch.Field, ch.Deadband, ch.Scale),
		})
	}
	return s, nil
}

// Observe adds one point per matching channel. Payloads a channel cannot
// parse are counted and skipped.
func (s *Set) Observe(m messaging.Message) {
	for _, e := range s.entries {
		if e.ch.Topic != "" && !messaging.MatchTopic(e.ch.Topic, m.Topic) {
			continue
		}
		p, err := e.extract(m)
		if err != nil {
			e.errors.Add(1)
			s.log.Debug().Err(err).Str("channel", e.ch.Title).Uint64("seq", m.Seq).Msg("skipping sample")
			continue
		}
		e.series.Add(p)
	}
}

// Snapshot returns every series in configuration order.
func (s *Set) Snapshot() []Snapshot {
	out := make([]Snapshot, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.series.Snapshot()
	}
	return out
}

// Series looks up a series by title.
func (s *Set) Series(title string) (*Series, bool) {
	for _, e := range s.entries {
		if e.ch.Title == title {
			return e.series, true
		}
	}
	return nil, false
}

// All returns the series in configuration order.
func (s *Set) All() []*Series {
	out := make([]*Series, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.series
	}
	return out
}

// Errors returns per-channel extraction failure counts.
func (s *Set) Errors() map[string]uint64 {
	out := make(map[string]uint64, len(s.entries))
	for _, e := range s.entries {
		out[e.ch.Title] = e.errors.Load()
	}
	return out
}

// Len is the number of channels.
func (s *Set) Len() int {
	return len(s.entries)
}

// Reset clears every series.
func (s *Set) Reset() {
	for _, e := range s.entries {
		e.series.Reset()
	}
}
