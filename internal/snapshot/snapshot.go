// Package snapshot is the backup store: it persists the pre-change state of
// every action so the revert planner can restore it exactly. One store is
// scoped to exactly one run and never shared across runs.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmatts/retune/internal/action"
	"github.com/dmatts/retune/internal/hostfs"
	"github.com/dmatts/retune/internal/services"
)

// FileSnapshot is the captured prior state of a file target. Content is
// held in the backup tree, not inline in the metadata.
type FileSnapshot struct {
	Path       string `json:"path"`
	Existed    bool   `json:"existed"`
	Mode       string `json:"mode,omitempty"` // octal, only when Existed
	BackupPath string `json:"backup_path,omitempty"`

	Content []byte `json:"-"` // populated on Put (input) and Get (loaded)
}

// SysctlSnapshot is the captured prior runtime value of a kernel parameter.
type SysctlSnapshot struct {
	Key     string `json:"key"`
	Existed bool   `json:"existed"`
	Value   string `json:"value,omitempty"`
}

// ServiceSnapshot is the captured prior state of a systemd unit.
type ServiceSnapshot struct {
	Unit  string         `json:"unit"`
	State services.State `json:"state"`
}

// CommandSnapshot records the declared inverse for a run_command action.
type CommandSnapshot struct {
	Undo []string `json:"undo,omitempty"`
}

// PackagesSnapshot records which packages were already installed before the
// run. Kept for reporting only; package removal is never performed.
type PackagesSnapshot struct {
	PriorInstalled map[string]bool `json:"prior_installed"`
}

// Snapshot is the captured prior state for one action, sufficient to undo
// its change. NoOp marks "pre-existing desired state": nothing to restore.
type Snapshot struct {
	ActionKey string      `json:"action_key"`
	Kind      action.Kind `json:"kind"`
	TakenAt   string      `json:"taken_at"` // RFC3339
	NoOp      bool        `json:"no_op,omitempty"`

	File     *FileSnapshot     `json:"file,omitempty"`
	Service  *ServiceSnapshot  `json:"service,omitempty"`
	Sysctl   *SysctlSnapshot   `json:"sysctl,omitempty"`
	Command  *CommandSnapshot  `json:"command,omitempty"`
	Packages *PackagesSnapshot `json:"packages,omitempty"`
}

// Store persists snapshots under one run directory:
//
//	<runDir>/snapshots/<key>.json   metadata
//	<runDir>/backup/<abs path>      file content mirror
//
// The store is owner-only; a run that fails halfway still leaves a
// queryable, consistent store for every action that reached Put.
type Store struct {
	runDir string
}

// NewStore creates (or reopens) the backup store for a run directory.
func NewStore(runDir string) (*Store, error) {
	for _, d := range []string{runDir, filepath.Join(runDir, "snapshots"), filepath.Join(runDir, "backup")} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return nil, fmt.Errorf("snapshot: mkdir %s: %w", d, err)
		}
	}
	return &Store{runDir: runDir}, nil
}

// Open opens an existing store, failing when the run directory is missing.
func Open(runDir string) (*Store, error) {
	if _, err := os.Stat(filepath.Join(runDir, "snapshots")); err != nil {
		return nil, fmt.Errorf("snapshot: open store at %s: %w", runDir, err)
	}
	return &Store{runDir: runDir}, nil
}

// Dir returns the run directory this store is scoped to.
func (s *Store) Dir() string { return s.runDir }

// Put persists a snapshot. For file snapshots of pre-existing files the
// original content is mirrored into the backup tree before the metadata is
// written, so a crash between the two never records a restorable snapshot
// that has no backing content.
func (s *Store) Put(snap Snapshot) error {
	if snap.TakenAt == "" {
		snap.TakenAt = time.Now().UTC().Format(time.RFC3339)
	}

	if snap.File != nil && snap.File.Existed {
		rel := filepath.Join("backup", snap.File.Path)
		dst := filepath.Join(s.runDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
			return fmt.Errorf("snapshot: mkdir backup for %s: %w", snap.File.Path, err)
		}
		if err := os.WriteFile(dst, snap.File.Content, 0o600); err != nil {
			return fmt.Errorf("snapshot: backup %s: %w", snap.File.Path, err)
		}
		snap.File.BackupPath = rel
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: marshal %s: %w", snap.ActionKey, err)
	}
	path := s.metaPath(snap.ActionKey)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	return nil
}

// Get loads the snapshot for an action key. ok is false when no snapshot
// was ever recorded for that key. File content is loaded back from the
// backup tree.
func (s *Store) Get(actionKey string) (Snapshot, bool, error) {
	data, err := os.ReadFile(s.metaPath(actionKey))
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("snapshot: read %s: %w", actionKey, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("snapshot: parse %s: %w", actionKey, err)
	}

	if snap.File != nil && snap.File.BackupPath != "" {
		content, err := os.ReadFile(filepath.Join(s.runDir, snap.File.BackupPath))
		if err != nil {
			return Snapshot{}, false, fmt.Errorf("snapshot: read backup for %s: %w", actionKey, err)
		}
		snap.File.Content = content
	}

	return snap, true, nil
}

// RestoreFile writes a file snapshot back to its original path: recreate
// the original content and mode, or delete the file if it did not exist
// before the run.
func (s *Store) RestoreFile(snap Snapshot) error {
	if snap.File == nil {
		return fmt.Errorf("snapshot: %s has no file state", snap.ActionKey)
	}
	if !snap.File.Existed {
		return hostfs.Remove(snap.File.Path)
	}
	content := snap.File.Content
	if content == nil {
		loaded, ok, err := s.Get(snap.ActionKey)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("snapshot: no stored snapshot for %s", snap.ActionKey)
		}
		content = loaded.File.Content
	}
	mode := os.FileMode(0o644)
	if snap.File.Mode != "" {
		var m uint32
		if _, err := fmt.Sscanf(snap.File.Mode, "%o", &m); err == nil {
			mode = os.FileMode(m)
		}
	}
	return hostfs.Write(snap.File.Path, content, mode)
}

func (s *Store) metaPath(actionKey string) string {
	return filepath.Join(s.runDir, "snapshots", sanitizeKey(actionKey)+".json")
}

// sanitizeKey maps an action key to a safe file name. The replacer is
// lossy (distinct keys can sanitize alike), so a short digest of the raw
// key keeps the mapping injective.
func sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", ":", "_", " ", "_", "..", "_")
	sum := sha256.Sum256([]byte(key))
	return r.Replace(key) + "-" + hex.EncodeToString(sum[:4])
}
