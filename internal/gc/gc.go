// Package gc prunes old run directories and audit logs per the retention
// policy. The run a future `revert --last` would target is never pruned.
package gc

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/dmatts/retune/internal/manifest"
)

// Policy defines retention rules for garbage collection.
type Policy struct {
	MaxAgeDays int  // delete runs older than N days
	MaxRuns    int  // keep at most N recent runs
	DryRun     bool // report without deleting
}

// Result tracks what was (or would be) cleaned up.
type Result struct {
	RunsRemoved       []string
	AuditFilesRemoved int
	BytesFreed        int64
}

var auditFileRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\.jsonl$`)

// Run performs garbage collection under baseDir. Runs listed in protected
// and runs still in RUNNING state are always kept.
func Run(baseDir string, policy Policy, protected map[string]bool) (*Result, error) {
	result := &Result{}

	if err := cleanRuns(filepath.Join(baseDir, "runs"), policy, protected, result); err != nil {
		return result, fmt.Errorf("gc: run cleanup: %w", err)
	}
	if err := cleanAudit(filepath.Join(baseDir, "audit"), policy, result); err != nil {
		return result, fmt.Errorf("gc: audit cleanup: %w", err)
	}
	return result, nil
}

type runInfo struct {
	id      string
	dir     string
	started time.Time
	size    int64
}

func cleanRuns(runsDir string, policy Policy, protected map[string]bool, result *Result) error {
	store := manifest.NewStore(runsDir)

	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var runs []runInfo
	for _, entry := range entries {
		if !entry.IsDir() || protected[entry.Name()] {
			continue
		}
		m, err := store.Load(entry.Name())
		if err != nil {
			continue // not a run dir
		}
		if m.State == manifest.Running {
			continue
		}
		started, err := time.Parse(time.RFC3339, m.StartedAt)
		if err != nil {
			started = time.Time{}
		}
		dir := filepath.Join(runsDir, entry.Name())
		runs = append(runs, runInfo{id: entry.Name(), dir: dir, started: started, size: dirSize(dir)})
	}

	// Newest first; everything past MaxRuns or older than MaxAgeDays goes.
	sort.Slice(runs, func(i, j int) bool { return runs[i].started.After(runs[j].started) })

	cutoff := time.Now().AddDate(0, 0, -policy.MaxAgeDays)
	for i, r := range runs {
		tooMany := policy.MaxRuns > 0 && i >= policy.MaxRuns
		tooOld := policy.MaxAgeDays > 0 && r.started.Before(cutoff)
		if !tooMany && !tooOld {
			continue
		}
		if !policy.DryRun {
			if err := os.RemoveAll(r.dir); err != nil {
				return err
			}
		}
		result.RunsRemoved = append(result.RunsRemoved, r.id)
		result.BytesFreed += r.size
	}
	return nil
}

func cleanAudit(auditDir string, policy Policy, result *Result) error {
	if policy.MaxAgeDays <= 0 {
		return nil
	}
	entries, err := os.ReadDir(auditDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cutoff := time.Now().AddDate(0, 0, -policy.MaxAgeDays)
	for _, entry := range entries {
		m := auditFileRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		day, err := time.Parse("2006-01-02", m[1])
		if err != nil || !day.Before(cutoff) {
			continue
		}
		path := filepath.Join(auditDir, entry.Name())
		if info, err := entry.Info(); err == nil {
			result.BytesFreed += info.Size()
		}
		if !policy.DryRun {
			if err := os.Remove(path); err != nil {
				return err
			}
		}
		result.AuditFilesRemoved++
	}
	return nil
}

func dirSize(dir string) int64 {
	var size int64
	filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
