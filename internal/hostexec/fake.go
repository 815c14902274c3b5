package hostexec

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Fake is a scripted Runner for tests. Responses are keyed by the full
// command line ("systemctl is-enabled cups.service"); unscripted commands
// fail loudly so tests never silently fall through.
type Fake struct {
	mu        sync.Mutex
	responses map[string][]FakeResponse
	Calls     []string
}

// FakeResponse is the scripted outcome for one command line.
type FakeResponse struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// NewFake returns an empty scripted runner.
func NewFake() *Fake {
	return &Fake{responses: make(map[string][]FakeResponse)}
}

// Script registers a response for the given command line.
func (f *Fake) Script(cmdline string, r FakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmdline] = []FakeResponse{r}
}

// ScriptSeq registers a sequence of responses for repeated invocations of
// the same command line. The last response repeats once the sequence is
// exhausted.
func (f *Fake) ScriptSeq(cmdline string, rs ...FakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmdline] = rs
}

// ScriptExit is shorthand for scripting a bare exit code.
func (f *Fake) ScriptExit(cmdline string, code int) {
	r := FakeResponse{ExitCode: code}
	if code != 0 {
		r.Err = fmt.Errorf("exit status %d", code)
	}
	f.Script(cmdline, r)
}

func (f *Fake) Run(_ context.Context, name string, args ...string) (Result, error) {
	cmdline := strings.Join(append([]string{name}, args...), " ")

	f.mu.Lock()
	f.Calls = append(f.Calls, cmdline)
	queue, ok := f.responses[cmdline]
	var r FakeResponse
	if ok {
		r = queue[0]
		if len(queue) > 1 {
			f.responses[cmdline] = queue[1:]
		}
	}
	f.mu.Unlock()

	if !ok {
		return Result{ExitCode: 127}, fmt.Errorf("hostexec: fake has no script for %q", cmdline)
	}
	return Result{Stdout: r.Stdout, Stderr: r.Stderr, ExitCode: r.ExitCode}, r.Err
}

// Called reports whether any recorded call starts with the given prefix.
func (f *Fake) Called(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}
