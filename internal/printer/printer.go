// Package printer writes human-facing command output to stderr. Colors are
// dropped automatically when the writer is not a terminal.
package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hay-kot/criterio"

	"github.com/hay-kot/rtscope/internal/styles"
)

// Symbols
const (
	Check = "✔"
	Cross = "✘"
	Dot   = "•"
)

type ctxKey struct{}

// Printer handles formatted output with colors and styles
type Printer struct {
	writer io.Writer

	red     lipgloss.Style
	green   lipgloss.Style
	yellow  lipgloss.Style
	gray    lipgloss.Style
	section lipgloss.Style
}

// New creates a Printer for w. The color profile is detected from w.
func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		writer:  w,
		red:     r.NewStyle().Foreground(styles.ColorRed),
		green:   r.NewStyle().Foreground(styles.ColorGreen),
		yellow:  r.NewStyle().Foreground(styles.ColorYellow),
		gray:    r.NewStyle().Foreground(styles.ColorGray),
		section: r.NewStyle().Bold(true).Underline(true).Foreground(styles.ColorBlue),
	}
}

// NewContext returns a context with the printer attached
func NewContext(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx retrieves the printer from context, or creates one on stderr.
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stderr)
}

func (p *Printer) line(s string) {
	_, _ = io.WriteString(p.writer, s+"\n")
}

// FatalError prints err in a box. It does not exit.
func (p *Printer) FatalError(err error) {
	if err == nil {
		return
	}

	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		p.validationErrors(err, fieldErrs)
		return
	}

	p.line(p.red.Render("╭ Error"))
	for _, l := range strings.Split(err.Error(), "\n") {
		p.line(p.red.Render("│") + " " + p.gray.Render(l))
	}
	p.line(p.red.Render("╵"))
}

func (p *Printer) validationErrors(wrapped error, fieldErrs criterio.FieldErrors) {
	// "load config: invalid config: <field errors>" keeps the prefix as context.
	prefix := ""
	if idx := strings.Index(wrapped.Error(), fieldErrs.Error()); idx > 0 {
		prefix = strings.TrimSuffix(wrapped.Error()[:idx], ": ")
	}

	bar := p.red.Render("│")
	p.line(p.red.Render("╭ Validation Error"))
	if prefix != "" {
		p.line(bar + " " + p.gray.Render(prefix))
		p.line(bar)
	}
	for _, fe := range fieldErrs {
		l := bar + " " + p.red.Render(Cross) + " "
		if fe.Field != "" {
			l += p.gray.Render(fe.Field + ": ")
		}
		p.line(l + fe.Err.Error())
	}
	p.line(p.red.Render("╵"))
}

// Errorf prints an error message in red
func (p *Printer) Errorf(format string, args ...any) {
	p.line(p.red.Render(Cross + " " + fmt.Sprintf(format, args...)))
}

// Successf prints a success message in green
func (p *Printer) Successf(format string, args ...any) {
	p.line(p.green.Render(Check + " " + fmt.Sprintf(format, args...)))
}

// Success prints message with optional details indented below it.
func (p *Printer) Success(message string, details string) {
	p.line(p.green.Render(Check + " " + message))
	if details != "" {
		p.line("  " + p.gray.Render(details))
	}
}

// Infof prints an info message in gray
func (p *Printer) Infof(format string, args ...any) {
	p.line(p.gray.Render(Dot + " " + fmt.Sprintf(format, args...)))
}

// Warnf prints a warning message in yellow
func (p *Printer) Warnf(format string, args ...any) {
	p.line(p.yellow.Render(Dot + " " + fmt.Sprintf(format, args...)))
}

// Printf prints a plain message without colors
func (p *Printer) Printf(format string, args ...any) {
	p.line(fmt.Sprintf(format, args...))
}

// Section prints a section header.
func (p *Printer) Section(title string) {
	p.line(p.section.Render(title))
}

// CheckItem prints an indented item with a green check.
func (p *Printer) CheckItem(label, detail string) {
	p.item(p.green, Check, label, detail)
}

// WarnItem prints an indented item with a yellow dot.
func (p *Printer) WarnItem(label, detail string) {
	p.item(p.yellow, Dot, label, detail)
}

// FailItem prints an indented item with a red cross.
func (p *Printer) FailItem(label, detail string) {
	p.item(p.red, Cross, label, detail)
}

func (p *Printer) item(style lipgloss.Style, symbol, label, detail string) {
	l := "  " + style.Render(symbol) + " " + label
	if detail != "" {
		l += ": " + detail
	}
	p.line(l)
}
