// Package utils holds small helpers shared by the command line entry point.
package utils

import (
	"bytes"
	"io"
	"sync"
)

// DeferredWriter buffers writes until Flush. It holds log output while a
// full-screen view owns the terminal.
type DeferredWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *DeferredWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

// Flush writes everything buffered so far to dst, one write per line so a
// line-oriented writer such as zerolog.ConsoleWriter sees whole events.
// The buffer is empty afterwards even when dst fails.
func (w *DeferredWriter) Flush(dst io.Writer) error {
	w.mu.Lock()
	data := bytes.Clone(w.buf.Bytes())
	w.buf.Reset()
	w.mu.Unlock()

	for len(data) > 0 {
		line, rest, found := bytes.Cut(data, []byte{'\n'})
		if found {
			line = data[:len(line)+1]
		}
		if _, err := dst.Write(line); err != nil {
			return err
		}
		data = rest
	}
	return nil
}

// Len returns the number of buffered bytes.
func (w *DeferredWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Len()
}
