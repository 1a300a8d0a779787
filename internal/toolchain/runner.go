package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	// stderrTailLines is how many trailing stderr lines a ProcessError keeps.
	stderrTailLines = 20
	// waitDelay bounds how long Run waits for output pipes after the
	// process has been killed.
	waitDelay = 2 * time.Second
)

// Runner executes external commands.
// A nil error means the process exited with status zero.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ProcessError reports an external process that could not be started or
// exited with a non-zero status.
type ProcessError struct {
	Command Command
	// ExitCode is the process exit status, or -1 if it never ran to
	// completion (not found, killed by a signal or by context cancellation).
	ExitCode   int
	StderrTail string
	Err        error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command.Name, e.ExitCode)
	if e.ExitCode < 0 && e.Err != nil {
		msg = fmt.Sprintf("%s failed: %v", e.Command.Name, e.Err)
	}
	if e.StderrTail != "" {
		msg += ": " + lastLine(e.StderrTail)
	}
	return msg
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Dir is the working directory for every command. Empty means the
	// current directory.
	Dir string
	// Stdout and Stderr receive the tool's own output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner returns a runner that passes tool output through to the
// terminal.
func NewExecRunner(dir string) *ExecRunner {
	return &ExecRunner{Dir: dir, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run starts cmd and waits for it. Cancelling ctx kills the process.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = r.Dir
	c.WaitDelay = waitDelay

	tail := &tailBuffer{max: stderrTailLines}
	c.Stdout = r.Stdout
	if r.Stderr != nil {
		c.Stderr = io.MultiWriter(r.Stderr, tail)
	} else {
		c.Stderr = tail
	}

	err := c.Run()
	if err == nil {
		return nil
	}

	perr := &ProcessError{Command: cmd, ExitCode: -1, StderrTail: tail.String(), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		perr.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		perr.ExitCode = -1
		perr.Err = ctxErr
	}
	return perr
}

// tailBuffer keeps the last max lines written to it.
type tailBuffer struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial bytes.Buffer
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.partial.Write(p)
	for {
		line, err := b.partial.ReadString('\n')
		if err != nil {
			// Incomplete line; keep it for the next write.
			rest := line
			b.partial.Reset()
			b.partial.WriteString(rest)
			break
		}
		b.push(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

func (b *tailBuffer) push(line string) {
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	lines := b.lines
	if b.partial.Len() > 0 {
		lines = append(append([]string(nil), lines...), b.partial.String())
		if len(lines) > b.max {
			lines = lines[len(lines)-b.max:]
		}
	}
	return strings.Join(lines, "\n")
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
