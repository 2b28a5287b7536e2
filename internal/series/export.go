package series

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/multierr"

	"github.com/hay-kot/rtscope/pkg/tmpl"
)

const (
	// DefaultFilenameTemplate names one CSV per series.
	DefaultFilenameTemplate = "{{ .Time }}_{{ .Title }}_data.csv"

	// TimeLayout formats the .Time template field.
	TimeLayout = "20060102_15_04_05"
)

// FilenameData is the data passed to the filename template.
type FilenameData struct {
	Time  string
	Title string
	Mode  Mode
}

// Exporter saves series as CSV files.
type Exporter struct {
	Dir      string
	Template string
	Now      func() time.Time
}

// Save writes one file per series and returns the paths written. Every series
// is attempted; failures are combined.
func (e Exporter) Save(series []*Series) ([]string, error) {
	tpl := e.Template
	if tpl == "" {
		tpl = DefaultFilenameTemplate
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	stamp := now().Format(TimeLayout)

	if e.Dir != "" {
		if err := os.MkdirAll(e.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create export directory: %w", err)
		}
	}

	var (
		paths []string
		errs  error
	)
	for _, s := range series {
		name, err := tmpl.Render(tpl, FilenameData{Time: stamp, Title: tmpl.SafeName(s.Title()), Mode: s.Mode()})
		if err != nil {
			return paths, fmt.Errorf("export filename: %w", err)
		}
		path := filepath.Join(e.Dir, name)
		if err := writeFile(path, s.Points()); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("export %q: %w", s.Title(), err))
			continue
		}
		paths = append(paths, path)
	}
	return paths, errs
}

func writeFile(path string, points []Point) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	if err := WriteCSV(w, points); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes an "x,y" header followed by one row per point.
func WriteCSV(w io.Writer, points []Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "y"}); err != nil {
		return err
	}
	for _, p := range points {
		row := []string{
			strconv.FormatFloat(p.X, 'f', -1, 64),
			strconv.FormatFloat(p.Y, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
