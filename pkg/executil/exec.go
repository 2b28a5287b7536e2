// Package executil runs external tools such as ffmpeg.
package executil

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// Executor runs external commands.
type Executor interface {
	// Run executes a command and returns its combined output.
	Run(ctx context.Context, cmd string, args ...string) ([]byte, error)
	// Spawn starts a long-running command fed through its stdin. Stdout and
	// stderr are streamed to the provided writers, which may be nil.
	Spawn(ctx context.Context, stdout, stderr io.Writer, cmd string, args ...string) (Process, error)
}

// Process is a command started by Spawn.
type Process interface {
	// Stdin is the write end of the command's standard input. Closing it
	// signals end of input.
	Stdin() io.WriteCloser
	// Wait blocks until the command exits.
	Wait() error
}

// RealExecutor calls actual commands.
type RealExecutor struct{}

// Run executes a command and returns its combined output.
func (e *RealExecutor) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, cmd, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("exec %s: %w", cmd, err)
	}
	return out, nil
}

// Spawn starts cmd with a pipe attached to its stdin.
func (e *RealExecutor) Spawn(ctx context.Context, stdout, stderr io.Writer, cmd string, args ...string) (Process, error) {
	c := exec.CommandContext(ctx, cmd, args...)
	c.Stdout = stdout
	c.Stderr = stderr

	stdin, err := c.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe for %s: %w", cmd, err)
	}
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd, err)
	}
	return &realProcess{cmd: c, name: cmd, stdin: stdin}, nil
}

type realProcess struct {
	cmd   *exec.Cmd
	name  string
	stdin io.WriteCloser
}

func (p *realProcess) Stdin() io.WriteCloser { return p.stdin }

func (p *realProcess) Wait() error {
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("exec %s: %w", p.name, err)
	}
	return nil
}
