// Package audit appends one JSON line per action outcome to daily log
// files, independent of any single run's manifest.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
)

// dateFileRe matches audit log files named YYYY-MM-DD.jsonl
var dateFileRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\.jsonl$`)

// Entry is the caller-facing audit payload.
type Entry struct {
	RunID     string
	ActionKey string
	Kind      string
	Outcome   string
	ErrorKind string
	Duration  time.Duration
	Error     string
}

// Record is the persisted form of an Entry.
type Record struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	RunID      string `json:"run_id"`
	ActionKey  string `json:"action_key"`
	Kind       string `json:"kind"`
	Outcome    string `json:"outcome"`
	ErrorKind  string `json:"error_kind,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Logger appends records to {dir}/{YYYY-MM-DD}.jsonl.
type Logger struct {
	dir string
}

// NewLogger ensures dir exists and returns a Logger writing into it.
func NewLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("audit: mkdir %s: %w", dir, err)
	}
	return &Logger{dir: dir}, nil
}

// Log appends one record to today's file.
func (l *Logger) Log(e Entry) error {
	rec := Record{
		ID:         uuid.New().String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RunID:      e.RunID,
		ActionKey:  e.ActionKey,
		Kind:       e.Kind,
		Outcome:    e.Outcome,
		ErrorKind:  e.ErrorKind,
		DurationMs: e.Duration.Milliseconds(),
		Error:      e.Error,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit: marshal: %w", err)
	}

	path := filepath.Join(l.dir, time.Now().UTC().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("audit: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: write: %w", err)
	}
	return nil
}

// Files returns the date-named audit files in the directory, oldest first.
func (l *Logger) Files() ([]string, error) {
	all, err := filepath.Glob(filepath.Join(l.dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("audit: glob: %w", err)
	}
	var filtered []string
	for _, f := range all {
		if dateFileRe.MatchString(filepath.Base(f)) {
			filtered = append(filtered, f)
		}
	}
	sort.Strings(filtered)
	return filtered, nil
}
