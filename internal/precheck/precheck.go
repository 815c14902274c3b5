// Package precheck validates the environment before a run: required
// binaries, a writable state directory, and a working run index.
package precheck

import (
	"sync"
	"time"
)

// Check is the interface for environment validation checks.
type Check interface {
	Name() string
	Run() CheckResult
}

// CheckResult holds the outcome of a single check.
type CheckResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// RunResult holds the aggregate outcome of all checks.
type RunResult struct {
	AllPassed bool          `json:"all_passed"`
	Results   []CheckResult `json:"results"`
	Duration  string        `json:"duration"`
}

// Runner manages and executes a collection of checks.
type Runner struct {
	mu     sync.RWMutex
	checks []Check
}

// NewRunner creates an empty runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Add appends a check to the runner (thread-safe).
func (r *Runner) Add(c Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, c)
}

// Run executes all checks sequentially, times execution, and returns RunResult.
func (r *Runner) Run() RunResult {
	r.mu.RLock()
	checks := make([]Check, len(r.checks))
	copy(checks, r.checks)
	r.mu.RUnlock()

	start := time.Now()
	var results []CheckResult
	allPassed := true
	for _, c := range checks {
		result := c.Run()
		results = append(results, result)
		if !result.Passed {
			allPassed = false
		}
	}
	return RunResult{
		AllPassed: allPassed,
		Results:   results,
		Duration:  time.Since(start).String(),
	}
}
