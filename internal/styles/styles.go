// Package styles holds the colors and styles shared by command output and
// the live view.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Tokyo Night color palette.
var (
	ColorGreen  = lipgloss.Color("#9ece6a")
	ColorYellow = lipgloss.Color("#e0af68")
	ColorBlue   = lipgloss.Color("#7aa2f7")
	ColorRed    = lipgloss.Color("#f7768e")
	ColorGray   = lipgloss.Color("#565f89")
	ColorWhite  = lipgloss.Color("#c0caf5")
)

// PayloadStyle styles message payloads in text output.
var PayloadStyle = lipgloss.NewStyle().
	Foreground(ColorWhite)

// MetaStyle styles sequence numbers and timings in text output.
var MetaStyle = lipgloss.NewStyle().
	Foreground(ColorGray)
