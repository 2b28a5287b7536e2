// Package tmpl renders the text/template strings used to name output files.
package tmpl

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"unicode"
)

// SafeName makes s usable as a single path element. Path separators,
// whitespace and characters that are reserved on common filesystems become
// underscores.
func SafeName(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|':
			return '_'
		case unicode.IsSpace(r) || unicode.IsControl(r):
			return '_'
		default:
			return r
		}
	}, s)
}

var funcs = template.FuncMap{
	"safe":  SafeName,
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
}

// Render executes a Go template string with the given data.
// Returns an error if the template is invalid or references undefined keys.
//
// Available template functions:
//   - safe: make a value usable as a file name
//   - lower, upper: change case
func Render(tmpl string, data any) (string, error) {
	t, err := template.New("").Funcs(funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}
