package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmatts/retune/internal/action"
	"github.com/dmatts/retune/internal/hostfs"
)

func TestPutGetFile(t *testing.T) {
	runDir := t.TempDir()
	store, err := NewStore(runDir)
	require.NoError(t, err)

	snap := Snapshot{
		ActionKey: "file:/etc/sysctl.d/99-perf.conf",
		Kind:      action.WriteFile,
		File: &FileSnapshot{
			Path:    "/etc/sysctl.d/99-perf.conf",
			Existed: true,
			Mode:    "644",
			Content: []byte("vm.swappiness = 60\n"),
		},
	}
	require.NoError(t, store.Put(snap))

	// Content is mirrored under backup/ at the original absolute path.
	mirrored, err := os.ReadFile(filepath.Join(runDir, "backup", "etc", "sysctl.d", "99-perf.conf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("vm.swappiness = 60\n"), mirrored)

	got, ok, err := store.Get("file:/etc/sysctl.d/99-perf.conf")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("vm.swappiness = 60\n"), got.File.Content)
	assert.True(t, got.File.Existed)
	assert.NotEmpty(t, got.TakenAt)
}

func TestGetMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, ok, err := store.Get("sysctl:vm.never")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutNonFileKinds(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(Snapshot{
		ActionKey: "sysctl:vm.swappiness",
		Kind:      action.Sysctl,
		Sysctl:    &SysctlSnapshot{Key: "vm.swappiness", Existed: true, Value: "60"},
	}))
	require.NoError(t, store.Put(Snapshot{
		ActionKey: "service:cups.service",
		Kind:      action.ServiceState,
		NoOp:      true,
	}))

	got, ok, err := store.Get("sysctl:vm.swappiness")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "60", got.Sysctl.Value)

	got, ok, err = store.Get("service:cups.service")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.NoOp)
}

func TestOpen(t *testing.T) {
	runDir := t.TempDir()
	_, err := Open(runDir)
	assert.Error(t, err)

	_, err = NewStore(runDir)
	require.NoError(t, err)

	store, err := Open(runDir)
	require.NoError(t, err)
	assert.Equal(t, runDir, store.Dir())
}

func TestRestoreFile(t *testing.T) {
	runDir := t.TempDir()
	store, err := NewStore(runDir)
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "conf")
	require.NoError(t, hostfs.Write(target, []byte("changed"), 0o644))

	require.NoError(t, store.Put(Snapshot{
		ActionKey: "file:" + target,
		Kind:      action.WriteFile,
		File:      &FileSnapshot{Path: target, Existed: true, Mode: "600", Content: []byte("original")},
	}))

	// Restore by stored key: content must be loaded back from the store.
	loaded, ok, err := store.Get("file:" + target)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, store.RestoreFile(loaded))

	st, err := hostfs.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), st.Content)
	assert.Equal(t, os.FileMode(0o600), st.Mode)
}

func TestRestoreFileDeletesCreated(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "new.conf")
	require.NoError(t, hostfs.Write(target, []byte("created by run"), 0o644))

	snap := Snapshot{
		ActionKey: "file:" + target,
		Kind:      action.WriteFile,
		File:      &FileSnapshot{Path: target, Existed: false},
	}
	require.NoError(t, store.Put(snap))
	require.NoError(t, store.RestoreFile(snap))

	st, err := hostfs.Stat(target)
	require.NoError(t, err)
	assert.False(t, st.Exists)
}

func TestSanitizeKey(t *testing.T) {
	assert.True(t, strings.HasPrefix(sanitizeKey("file:/etc/fstab"), "file__etc_fstab-"))
	assert.NotContains(t, sanitizeKey("a/../b"), "..")

	// Keys that sanitize to the same replacer output must still map to
	// distinct file names.
	assert.NotEqual(t, sanitizeKey("sysctl:vm.swappiness"), sanitizeKey("sysctl_vm.swappiness"))
}

func TestPutKeysThatSanitizeAlike(t *testing.T) {
	runDir := t.TempDir()
	store, err := NewStore(runDir)
	require.NoError(t, err)

	require.NoError(t, store.Put(Snapshot{
		ActionKey: "sysctl:vm.swappiness",
		Kind:      action.Sysctl,
		Sysctl:    &SysctlSnapshot{Key: "vm.swappiness", Existed: true, Value: "60"},
	}))
	require.NoError(t, store.Put(Snapshot{
		ActionKey: "sysctl_vm.swappiness",
		Kind:      action.Sysctl,
		Sysctl:    &SysctlSnapshot{Key: "vm.swappiness", Existed: true, Value: "10"},
	}))

	got, ok, err := store.Get("sysctl:vm.swappiness")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "60", got.Sysctl.Value)

	got, ok, err = store.Get("sysctl_vm.swappiness")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "10", got.Sysctl.Value)
}
