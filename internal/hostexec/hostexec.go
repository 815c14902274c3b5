// Package hostexec runs external host commands (systemctl, sysctl, apt-get)
// with a bounded timeout per invocation.
package hostexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Result captures one command invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

// Runner executes a host command. Implementations must respect ctx.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// Exec is the real Runner backed by os/exec. Timeout bounds every
// invocation; zero means 30 seconds.
type Exec struct {
	Timeout time.Duration
}

// New returns an Exec runner with the given per-command timeout.
func New(timeout time.Duration) *Exec {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Exec{Timeout: timeout}
}

func (e *Exec) Run(ctx context.Context, name string, args ...string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if err != nil {
		if ctx.Err() != nil {
			result.TimedOut = true
			return result, fmt.Errorf("hostexec: %s timed out after %s: %w", name, e.Timeout, ctx.Err())
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			// Keep stderr in the error text: failure classification reads it.
			return result, fmt.Errorf("hostexec: %s exited %d: %s: %w", name, result.ExitCode, firstLine(result.Stderr), err)
		}
		return result, fmt.Errorf("hostexec: %s: %w", name, err)
	}

	return result, nil
}

// firstLine trims stderr to its first non-empty line for error messages.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}
