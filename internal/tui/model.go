package tui

import (
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hay-kot/rtscope/internal/core/messaging"
	"github.com/hay-kot/rtscope/internal/series"
	"github.com/hay-kot/rtscope/internal/subscriber"
)

// Source is the read side of a running subscriber.
type Source interface {
	Address() string
	Topic() string
	Stats() subscriber.Stats
	Latest() (messaging.Message, bool)
	Err() error
	Done() <-chan struct{}
}

// Options configures the watch view.
type Options struct {
	// Interval between redraws. The view never redraws per message.
	Interval time.Duration

	Exporter   series.Exporter
	SaveOnExit bool
}

// Model is the Bubble Tea model for `rtscope watch`. It reads the subscriber
// and series set on a fixed tick and never blocks the receive loop.
type Model struct {
	src  Source
	set  *series.Set
	opts Options

	keys keyMap
	help help.Model
	bar  progress.Model

	width  int
	height int

	snaps    []series.Snapshot
	stats    subscriber.Stats
	latest   messaging.Message
	hasMsg   bool
	meter    rateMeter
	rate     float64
	paused   bool
	finished bool
	err      error

	status   string
	saved    []string
	quitting bool
}

// New creates the watch model.
func New(src Source, set *series.Set, opts Options) Model {
	if opts.Interval <= 0 {
		opts.Interval = DefaultRenderInterval
	}

	m := Model{
		src:  src,
		set:  set,
		opts: opts,
		keys: defaultKeyMap(),
		help: help.New(),
		bar:  progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
	m.refresh(time.Now())
	return m
}

// Saved returns the CSV files written during the session.
func (m Model) Saved() []string {
	return m.saved
}

// Err returns the last export or subscriber error.
func (m Model) Err() error {
	return m.err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(scheduleRender(m.opts.Interval), waitDone(m.src.Done()))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(10, msg.Width-barLabelWidth-4)
		m.help.Width = msg.Width
		return m, nil

	case renderTickMsg:
		if !m.paused {
			m.refresh(time.Time(msg))
		}
		return m, scheduleRender(m.opts.Interval)

	case subscriberDoneMsg:
		m.finished = true
		m.refresh(time.Now())
		if err := m.src.Err(); err != nil {
			m.err = err
		}
		return m, nil

	case exportedMsg:
		m.saved = append(m.saved, msg.paths...)
		if msg.err != nil {
			m.err = msg.err
			m.status = "export failed"
		} else {
			m.status = "saved " + pluralFiles(len(msg.paths))
		}
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if m.opts.SaveOnExit && m.hasData() {
			m.status = "saving..."
			return m, m.export()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Save):
		m.status = "saving..."
		return m, m.export()

	case key.Matches(msg, m.keys.Reset):
		m.set.Reset()
		m.refresh(time.Now())
		m.status = "cleared"
		return m, nil

	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused
		if !m.paused {
			m.refresh(time.Now())
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) refresh(now time.Time) {
	m.stats = m.src.Stats()
	m.latest, m.hasMsg = m.src.Latest()
	m.snaps = m.set.Snapshot()
	m.rate = m.meter.update(now, m.stats.Received)
}

func (m Model) hasData() bool {
	for _, s := range m.set.Snapshot() {
		if !s.Empty() {
			return true
		}
	}
	return false
}

func (m Model) export() tea.Cmd {
	exporter, all := m.opts.Exporter, m.set.All()
	return func() tea.Msg {
		paths, err := exporter.Save(all)
		return exportedMsg{paths: paths, err: err}
	}
}

func pluralFiles(n int) string {
	if n == 1 {
		return "1 file"
	}
	return strconv.Itoa(n) + " files"
}
