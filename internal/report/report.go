// Package report derives the read-only run summary from a manifest: outcome
// counts, run state, and where the run's artifacts live on disk.
package report

import (
	"path/filepath"

	"github.com/dmatts/retune/internal/action"
	"github.com/dmatts/retune/internal/manifest"
)

// Report is the derived summary of one run. It is computed, never stored.
type Report struct {
	RunID       string            `json:"run_id"`
	Profile     string            `json:"profile"`
	State       manifest.RunState `json:"state"`
	StartedAt   string            `json:"started_at"`
	EndedAt     string            `json:"ended_at,omitempty"`
	ActionCount int               `json:"action_count"`
	Applied     int               `json:"applied"`
	Satisfied   int               `json:"already_satisfied"`
	Skipped     int               `json:"skipped"`
	Failed      int               `json:"failed"`
	NotRun      int               `json:"not_run"` // declared but never reached (aborted runs)
	Entries     []manifest.Entry  `json:"entries"`
	Locations   ArtifactLocations `json:"locations"`
}

// ArtifactLocations points at the run's on-disk artifacts.
type ArtifactLocations struct {
	RunDir     string `json:"run_dir"`
	Manifest   string `json:"manifest"`
	BackupDir  string `json:"backup_dir"`
	RevertPlan string `json:"revert_plan"`
}

// Build aggregates a manifest into a Report. runDir is the directory the
// manifest and backup store live in.
func Build(m *manifest.Manifest, runDir string) *Report {
	r := &Report{
		RunID:       m.RunID,
		Profile:     m.Profile,
		State:       m.State,
		StartedAt:   m.StartedAt,
		EndedAt:     m.EndedAt,
		ActionCount: m.ActionCount,
		Entries:     m.Entries,
		Locations: ArtifactLocations{
			RunDir:     runDir,
			Manifest:   filepath.Join(runDir, "manifest.jsonl"),
			BackupDir:  filepath.Join(runDir, "backup"),
			RevertPlan: filepath.Join(runDir, "revert.json"),
		},
	}

	for _, e := range m.Entries {
		switch e.Outcome.Status {
		case action.Applied:
			r.Applied++
		case action.AlreadySatisfied:
			r.Satisfied++
		case action.Skipped:
			r.Skipped++
		case action.Failed:
			r.Failed++
		}
	}
	r.NotRun = m.ActionCount - len(m.Entries)
	if r.NotRun < 0 {
		r.NotRun = 0
	}
	return r
}
