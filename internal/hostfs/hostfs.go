// Package hostfs is the thin filesystem boundary used by file actions and
// the backup store. Paths only ever come from declared actions.
package hostfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileState is the observed state of one path.
type FileState struct {
	Exists  bool
	Content []byte
	Mode    os.FileMode
}

// Stat reads the full state of path. A missing file is not an error.
func Stat(path string) (FileState, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileState{}, nil
		}
		return FileState{}, fmt.Errorf("hostfs: stat %s: %w", path, err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return FileState{}, fmt.Errorf("hostfs: read %s: %w", path, err)
	}
	return FileState{Exists: true, Content: content, Mode: info.Mode().Perm()}, nil
}

// Write writes content to path with the given mode, creating parent
// directories as needed.
func Write(path string, content []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("hostfs: mkdir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, mode); err != nil {
		return fmt.Errorf("hostfs: write %s: %w", path, err)
	}
	// WriteFile does not change the mode of a pre-existing file.
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("hostfs: chmod %s: %w", path, err)
	}
	return nil
}

// Remove deletes path. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("hostfs: remove %s: %w", path, err)
	}
	return nil
}

// Copy copies src to dst preserving the source's permission bits, creating
// parent directories for dst as needed.
func Copy(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("hostfs: stat %s: %w", src, err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("hostfs: open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("hostfs: mkdir for %s: %w", dst, err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("hostfs: create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("hostfs: copy %s -> %s: %w", src, dst, err)
	}
	return out.Sync()
}
