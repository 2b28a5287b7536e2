package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/rtscope/internal/series"
)

const (
	defaultWidth  = 80
	barLabelWidth = 12
	payloadWidth  = 60
)

func (m Model) View() string {
	if m.quitting && m.status == "" {
		return ""
	}

	sections := []string{m.headerView()}
	for _, snap := range m.snaps {
		sections = append(sections, m.channelView(snap))
	}
	sections = append(sections, m.footerView())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) contentWidth() int {
	w := m.width
	if w == 0 {
		w = defaultWidth
	}
	return max(10, w-2)
}

func (m Model) headerView() string {
	topic := m.src.Topic()
	if topic == "" {
		topic = "*"
	}

	title := titleStyle.Render("rtscope") + " " +
		valueStyle.Render(m.src.Address()) + " " +
		labelStyle.Render("topic ") + valueStyle.Render(topic)
	if m.paused {
		title += " " + pausedStyle.Render("PAUSED")
	}

	state := m.stats.State.String()
	counters := []string{
		stateStyle(state).Render(state),
		field("received", fmt.Sprint(m.stats.Received)),
		field("rate", fmt.Sprintf("%.1f/s", m.rate)),
		field("dropped", fmt.Sprint(m.stats.Dropped)),
		field("undecodable", fmt.Sprint(m.stats.DecodeErrors)),
	}
	if m.hasMsg {
		counters = append(counters, field("elapsed", formatElapsed(m.latest.Elapsed)))
	}

	last := emptyStyle.Render("waiting for messages")
	if m.hasMsg {
		last = labelStyle.Render("last ") + valueStyle.Render(truncate(m.latest.Payload, payloadWidth))
	}

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		strings.Join(counters, "  "),
		last,
	))
}

func (m Model) channelView(s series.Snapshot) string {
	lo, hi := bounds(s)

	head := channelStyle.Render(s.Title) + " " + labelStyle.Render(string(s.Mode))
	if s.Empty() {
		return panelStyle.Render(head + "\n" + emptyStyle.Render("no samples"))
	}
	head += "  " + field("last", formatValue(s.Last.Y)) +
		"  " + field("min", formatValue(s.Min)) +
		"  " + field("max", formatValue(s.Max))

	var body string
	if s.Mode == series.ModeBar {
		body = fmt.Sprintf("%-*s", barLabelWidth, formatValue(s.Last.Y)) + m.bar.ViewAs(fraction(s.Last.Y, lo, hi))
	} else {
		body = sparkStyle.Render(sparkline(s.Points, m.contentWidth(), lo, hi))
	}

	return panelStyle.Render(head + "\n" + body)
}

func (m Model) footerView() string {
	var parts []string
	if m.err != nil {
		parts = append(parts, errorStyle.Render(m.err.Error()))
	} else if m.finished {
		parts = append(parts, labelStyle.Render("subscriber stopped"))
	}
	if m.status != "" {
		parts = append(parts, labelStyle.Render(m.status))
	}
	parts = append(parts, m.help.View(m.keys))

	return statusStyle.Render(strings.Join(parts, "\n"))
}

func field(label, value string) string {
	return labelStyle.Render(label+" ") + valueStyle.Render(value)
}

func formatValue(v float64) string {
	return fmt.Sprintf("%.3g", v)
}

func formatElapsed(d time.Duration) string {
	return d.Truncate(100 * time.Millisecond).String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
