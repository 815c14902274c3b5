package precheck

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/dmatts/retune/internal/filelock"
	"github.com/dmatts/retune/internal/statedb"
)

// BinaryCheck verifies that a required external binary is on PATH.
type BinaryCheck struct {
	Binary   string
	Optional bool // best-effort actions only; a miss is a pass with a note
}

func (c BinaryCheck) Name() string { return "binary:" + c.Binary }

func (c BinaryCheck) Run() CheckResult {
	path, err := exec.LookPath(c.Binary)
	if err != nil {
		if c.Optional {
			return CheckResult{Name: c.Name(), Passed: true, Message: "not found (only needed by some action kinds)"}
		}
		return CheckResult{Name: c.Name(), Passed: false, Message: "not found on PATH"}
	}
	return CheckResult{Name: c.Name(), Passed: true, Message: path}
}

// StateDirCheck verifies the base directory exists (or can be created) and
// is writable.
type StateDirCheck struct {
	BaseDir string
}

func (c StateDirCheck) Name() string { return "state-dir" }

func (c StateDirCheck) Run() CheckResult {
	if err := os.MkdirAll(c.BaseDir, 0o700); err != nil {
		return CheckResult{Name: c.Name(), Passed: false, Message: err.Error()}
	}
	probe := filepath.Join(c.BaseDir, ".write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return CheckResult{Name: c.Name(), Passed: false, Message: err.Error()}
	}
	os.Remove(probe)
	return CheckResult{Name: c.Name(), Passed: true, Message: c.BaseDir + " is writable"}
}

// RunIndexCheck verifies the sqlite run index opens.
type RunIndexCheck struct {
	DBPath string
}

func (c RunIndexCheck) Name() string { return "run-index" }

func (c RunIndexCheck) Run() CheckResult {
	db, err := statedb.Open(c.DBPath)
	if err != nil {
		return CheckResult{Name: c.Name(), Passed: false, Message: err.Error()}
	}
	db.Close()
	return CheckResult{Name: c.Name(), Passed: true, Message: c.DBPath}
}

// LockCheck reports the state of the global apply/revert lock, including
// leftover metadata from a holder that died.
type LockCheck struct {
	BaseDir string
}

func (c LockCheck) Name() string { return "lock" }

func (c LockCheck) Run() CheckResult {
	lockPath := filepath.Join(c.BaseDir, "retune.lock")
	meta, err := filelock.ReadMeta(lockPath)
	if err != nil {
		return CheckResult{Name: c.Name(), Passed: true, Message: "not held"}
	}
	if filelock.IsStale(lockPath) {
		return CheckResult{Name: c.Name(), Passed: true,
			Message: fmt.Sprintf("stale metadata from dead PID %d (last run likely crashed; see retune runs)", meta.PID)}
	}
	return CheckResult{Name: c.Name(), Passed: true, Message: fmt.Sprintf("held by PID %d", meta.PID)}
}

// PrivilegeCheck reports whether the process can mutate system state.
// Non-root is a pass with a warning: file actions in user paths still work.
type PrivilegeCheck struct{}

func (c PrivilegeCheck) Name() string { return "privileges" }

func (c PrivilegeCheck) Run() CheckResult {
	if os.Geteuid() == 0 {
		return CheckResult{Name: c.Name(), Passed: true, Message: "running as root"}
	}
	return CheckResult{Name: c.Name(), Passed: true, Message: fmt.Sprintf("running as uid %d; system targets will need privileges", os.Geteuid())}
}
