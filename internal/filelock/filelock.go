// Package filelock provides the flock-based global lock that serializes
// apply and revert. The host is a single shared resource; two concurrent
// runs would corrupt each other's snapshots.
package filelock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// LockVersion is the current version of the lock metadata format.
const LockVersion = 1

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("lock is held by another process")

// Lock represents the acquired global lock.
type Lock struct {
	Path string
	file *os.File
}

// Meta is the on-disk metadata written alongside the lock file.
type Meta struct {
	PID       int    `json:"pid"`
	Timestamp string `json:"timestamp"`
	Version   int    `json:"lock_version"`
}

// Acquire takes the global lock at {baseDir}/retune.lock. It does not
// block: a held lock returns ErrLocked with the holder's PID.
func Acquire(baseDir string) (*Lock, error) {
	lockPath := filepath.Join(baseDir, "retune.lock")
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("filelock: mkdir for lock: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("filelock: open lock file: %w", err)
	}

	fd := int(f.Fd())
	if err := syscall.Flock(fd, syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			holderPID := 0
			if meta, metaErr := ReadMeta(lockPath); metaErr == nil {
				holderPID = meta.PID
			}
			return nil, fmt.Errorf("%w (holder PID: %d)", ErrLocked, holderPID)
		}
		return nil, fmt.Errorf("filelock: flock: %w", err)
	}

	meta := Meta{
		PID:       os.Getpid(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   LockVersion,
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		syscall.Flock(fd, syscall.LOCK_UN)
		f.Close()
		return nil, fmt.Errorf("filelock: marshal meta: %w", err)
	}
	if err := os.WriteFile(lockPath+".meta", metaData, 0o600); err != nil {
		syscall.Flock(fd, syscall.LOCK_UN)
		f.Close()
		return nil, fmt.Errorf("filelock: write meta: %w", err)
	}

	return &Lock{Path: lockPath, file: f}, nil
}

// Release releases the lock and removes its meta file.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	fd := int(l.file.Fd())
	if err := syscall.Flock(fd, syscall.LOCK_UN); err != nil {
		return fmt.Errorf("filelock: flock LOCK_UN: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("filelock: close lock file: %w", err)
	}
	l.file = nil

	// Best-effort removal of meta file.
	_ = os.Remove(l.Path + ".meta")
	return nil
}

// IsStale checks whether the lock at lockPath belongs to a dead process.
func IsStale(lockPath string) bool {
	meta, err := ReadMeta(lockPath)
	if err != nil {
		// No meta or unreadable meta: treat as stale.
		return true
	}

	proc, err := os.FindProcess(meta.PID)
	if err != nil {
		return true
	}

	// Signal 0 checks process existence without actually sending a signal.
	err = proc.Signal(syscall.Signal(0))
	return err != nil
}

// ReadMeta reads and parses the .meta JSON file associated with lockPath.
func ReadMeta(lockPath string) (Meta, error) {
	metaPath := lockPath + ".meta"
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return Meta{}, fmt.Errorf("filelock: read meta: %w", err)
	}

	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("filelock: unmarshal meta: %w", err)
	}
	return meta, nil
}
