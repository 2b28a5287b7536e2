// Package tui implements the Bubble Tea live plot for rtscope.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/rtscope/internal/styles"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.ColorBlue).
			PaddingLeft(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray)

	valueStyle = lipgloss.NewStyle().
			Foreground(styles.ColorWhite)

	channelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.ColorWhite)

	sparkStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGreen)

	emptyStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray).
			Italic(true)

	pausedStyle = lipgloss.NewStyle().
			Foreground(styles.ColorYellow).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.ColorRed)

	statusStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray).
			PaddingLeft(1)

	panelStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			PaddingBottom(1)
)

// stateStyle colors a subscriber state name.
func stateStyle(state string) lipgloss.Style {
	switch state {
	case "running":
		return lipgloss.NewStyle().Foreground(styles.ColorGreen)
	case "failed":
		return errorStyle
	default:
		return lipgloss.NewStyle().Foreground(styles.ColorYellow)
	}
}
