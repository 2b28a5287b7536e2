package executil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// RecordedCommand captures a command that was executed.
type RecordedCommand struct {
	Cmd  string
	Args []string
}

// RecordingExecutor captures commands for testing.
// Configure Outputs and Errors maps to control return values.
type RecordingExecutor struct {
	mu        sync.Mutex
	Commands  []RecordedCommand
	Processes []*RecordedProcess

	// Outputs maps command names to their output.
	// Key is the command name (e.g., "ffmpeg").
	Outputs map[string][]byte

	// Errors maps command names to their error. For Spawn the error is
	// returned from Wait.
	Errors map[string]error

	// WriteErrors maps command names to an error returned by the spawned
	// process's stdin once WriteErrorAfter bytes have been accepted.
	WriteErrors     map[string]error
	WriteErrorAfter int
}

// Run records the command and returns configured output/error.
func (e *RecordingExecutor) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	return e.record(cmd, args...)
}

// Spawn records the command and returns a process whose stdin is buffered in memory.
func (e *RecordingExecutor) Spawn(ctx context.Context, stdout, stderr io.Writer, cmd string, args ...string) (Process, error) {
	out, err := e.record(cmd, args...)
	if stdout != nil && len(out) > 0 {
		_, _ = stdout.Write(out)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := &RecordedProcess{
		Cmd:     RecordedCommand{Cmd: cmd, Args: args},
		waitErr: err,
		closed:  make(chan struct{}),
	}
	if e.WriteErrors != nil {
		p.writeErr = e.WriteErrors[cmd]
		p.writeErrAfter = e.WriteErrorAfter
	}
	e.Processes = append(e.Processes, p)
	return p, nil
}

func (e *RecordingExecutor) record(cmd string, args ...string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Commands = append(e.Commands, RecordedCommand{
		Cmd:  cmd,
		Args: args,
	})

	var out []byte
	var err error

	if e.Outputs != nil {
		out = e.Outputs[cmd]
	}
	if e.Errors != nil {
		err = e.Errors[cmd]
	}

	return out, err
}

// Reset clears recorded commands and processes.
func (e *RecordingExecutor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Commands = nil
	e.Processes = nil
}

// LastProcess returns the most recently spawned process, or nil.
func (e *RecordingExecutor) LastProcess() *RecordedProcess {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Processes) == 0 {
		return nil
	}
	return e.Processes[len(e.Processes)-1]
}

var errStdinClosed = errors.New("stdin closed")

// RecordedProcess is a fake process that keeps everything written to its stdin.
type RecordedProcess struct {
	Cmd RecordedCommand

	mu            sync.Mutex
	buf           bytes.Buffer
	waitErr       error
	writeErr      error
	writeErrAfter int
	closeOnce     sync.Once
	closed        chan struct{}
}

func (p *RecordedProcess) Stdin() io.WriteCloser { return recordedStdin{p} }

// Wait blocks until stdin is closed.
func (p *RecordedProcess) Wait() error {
	<-p.closed
	return p.waitErr
}

// Bytes returns a copy of everything written to stdin.
func (p *RecordedProcess) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return bytes.Clone(p.buf.Bytes())
}

// Closed reports whether stdin has been closed.
func (p *RecordedProcess) Closed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

type recordedStdin struct{ p *RecordedProcess }

func (w recordedStdin) Write(b []byte) (int, error) {
	p := w.p
	if p.Closed() {
		return 0, errStdinClosed
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil && p.buf.Len()+len(b) > p.writeErrAfter {
		return 0, p.writeErr
	}
	return p.buf.Write(b)
}

func (w recordedStdin) Close() error {
	w.p.closeOnce.Do(func() { close(w.p.closed) })
	return nil
}
