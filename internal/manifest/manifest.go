// Package manifest provides the durable, ordered record of a run. Entries
// are journaled to manifest.jsonl and flushed one line at a time, so a
// crashed run still leaves a usable partial manifest for partial revert. A
// consolidated manifest.json is written when the run finishes and rewritten
// only to record a revert; loads read it first and fall back to the journal.
package manifest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dmatts/retune/internal/action"
)

// RunState is the global state of one run.
type RunState string

const (
	Running               RunState = "RUNNING"
	Completed             RunState = "COMPLETED"
	CompletedWithFailures RunState = "COMPLETED_WITH_FAILURES"
	Aborted               RunState = "ABORTED"
	Reverted              RunState = "REVERTED"
)

// Entry captures the outcome of a single action in a run.
type Entry struct {
	Seq         int            `json:"seq"`
	Action      action.Action  `json:"action"`
	Outcome     action.Outcome `json:"outcome"`
	ErrorKind   string         `json:"error_kind,omitempty"`
	SnapshotKey string         `json:"snapshot_key,omitempty"` // key into the run's backup store
	DurationMs  int64          `json:"duration_ms"`
}

// Manifest holds the complete metadata for one run.
type Manifest struct {
	RunID       string   `json:"run_id"`
	Profile     string   `json:"profile"`
	StartedAt   string   `json:"started_at"`
	EndedAt     string   `json:"ended_at,omitempty"`
	State       RunState `json:"state"`
	ActionCount int      `json:"action_count"`
	Entries     []Entry  `json:"entries"`
}

// journal line shapes; one JSON object per line.
type journalLine struct {
	Type  string     `json:"type"` // "run", "entry", "end"
	Run   *runHeader `json:"run,omitempty"`
	Entry *Entry     `json:"entry,omitempty"`
	State RunState   `json:"state,omitempty"`
	At    string     `json:"at,omitempty"`
}

type runHeader struct {
	RunID       string `json:"run_id"`
	Profile     string `json:"profile"`
	StartedAt   string `json:"started_at"`
	ActionCount int    `json:"action_count"`
}

// Store manages manifest persistence under a runs root directory.
type Store struct {
	dir string
}

// NewStore creates a Store that reads and writes run manifests under dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// RunDir returns the directory for one run.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.dir, runID)
}

// Writer journals entries for one in-progress run.
type Writer struct {
	f      *os.File
	header runHeader
	closed bool
}

// Begin creates the run directory and opens a journal with the run header
// already flushed.
func (s *Store) Begin(runID, profile, startedAt string, actionCount int) (*Writer, error) {
	runDir := s.RunDir(runID)
	if err := os.MkdirAll(runDir, 0o700); err != nil {
		return nil, fmt.Errorf("manifest: mkdir %s: %w", runDir, err)
	}
	f, err := os.OpenFile(filepath.Join(runDir, "manifest.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("manifest: open journal: %w", err)
	}
	w := &Writer{f: f, header: runHeader{
		RunID:       runID,
		Profile:     profile,
		StartedAt:   startedAt,
		ActionCount: actionCount,
	}}
	if err := w.writeLine(journalLine{Type: "run", Run: &w.header}); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Append journals one entry and flushes it to disk before returning.
func (w *Writer) Append(e Entry) error {
	if w.closed {
		return fmt.Errorf("manifest: append after finalize")
	}
	return w.writeLine(journalLine{Type: "entry", Entry: &e})
}

// Finalize records the terminal run state, closes the journal, and writes
// the consolidated manifest.json.
func (w *Writer) Finalize(state RunState, endedAt string) (*Manifest, error) {
	if w.closed {
		return nil, fmt.Errorf("manifest: already finalized")
	}
	if err := w.writeLine(journalLine{Type: "end", State: state, At: endedAt}); err != nil {
		return nil, err
	}
	w.closed = true
	if err := w.f.Close(); err != nil {
		return nil, fmt.Errorf("manifest: close journal: %w", err)
	}

	runDir := filepath.Dir(w.f.Name())
	m, err := loadJournal(filepath.Join(runDir, "manifest.jsonl"))
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("manifest: marshal: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "manifest.json"), data, 0o600); err != nil {
		return nil, fmt.Errorf("manifest: write consolidated: %w", err)
	}
	return m, nil
}

func (w *Writer) writeLine(line journalLine) error {
	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("manifest: marshal line: %w", err)
	}
	if _, err := w.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("manifest: write line: %w", err)
	}
	// Flush per entry: a partially-applied run must still produce a usable
	// partial manifest.
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("manifest: sync: %w", err)
	}
	return nil
}

// Load reads the manifest for a run. The consolidated manifest.json wins
// when it exists, since MarkReverted rewrites only that file; runs that
// never finalized fall back to the journal, where a missing end record
// means the run terminated mid-flight and is reported as Aborted.
func (s *Store) Load(runID string) (*Manifest, error) {
	runDir := s.RunDir(runID)
	if data, err := os.ReadFile(filepath.Join(runDir, "manifest.json")); err == nil {
		var m Manifest
		if err := json.Unmarshal(data, &m); err == nil && m.RunID != "" {
			return &m, nil
		}
	}
	return loadJournal(filepath.Join(runDir, "manifest.jsonl"))
}

func loadJournal(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer f.Close()

	m := &Manifest{State: Aborted}
	sawHeader := false

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line journalLine
		if err := json.Unmarshal(raw, &line); err != nil {
			// A torn trailing line from a crash mid-write; everything
			// before it is still valid.
			break
		}
		switch line.Type {
		case "run":
			if line.Run != nil {
				m.RunID = line.Run.RunID
				m.Profile = line.Run.Profile
				m.StartedAt = line.Run.StartedAt
				m.ActionCount = line.Run.ActionCount
				sawHeader = true
			}
		case "entry":
			if line.Entry != nil {
				m.Entries = append(m.Entries, *line.Entry)
			}
		case "end":
			m.State = line.State
			m.EndedAt = line.At
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("manifest: scan %s: %w", path, err)
	}
	if !sawHeader {
		return nil, fmt.Errorf("manifest: %s has no run header", path)
	}
	return m, nil
}

// Recent returns up to n manifests sorted by StartedAt descending. A
// missing runs directory yields an empty slice.
func (s *Store) Recent(n int) ([]*Manifest, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("manifest: read runs dir: %w", err)
	}

	var manifests []*Manifest
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m, err := s.Load(entry.Name())
		if err != nil {
			// Skip directories that don't contain a valid manifest.
			continue
		}
		manifests = append(manifests, m)
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].StartedAt > manifests[j].StartedAt
	})

	if n > 0 && n < len(manifests) {
		manifests = manifests[:n]
	}
	return manifests, nil
}

// MarkReverted rewrites the consolidated manifest state after a successful
// revert. The journal itself is never rewritten.
func (s *Store) MarkReverted(runID string) error {
	m, err := s.Load(runID)
	if err != nil {
		return err
	}
	m.State = Reverted
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: marshal: %w", err)
	}
	return os.WriteFile(filepath.Join(s.RunDir(runID), "manifest.json"), data, 0o600)
}
