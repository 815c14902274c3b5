package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmatts/retune/internal/action"
)

func entry(seq int, key string, status action.Status) Entry {
	return Entry{
		Seq: seq,
		Action: action.Action{
			Key:    key,
			Kind:   action.Sysctl,
			Sysctl: &action.SysctlSpec{Key: "vm.swappiness", Value: "10"},
		},
		Outcome:     action.Outcome{Status: status},
		SnapshotKey: key,
	}
}

func TestJournalRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	w, err := store.Begin("run-1", "laptop-perf", "2026-08-31T10:00:00Z", 2)
	require.NoError(t, err)
	require.NoError(t, w.Append(entry(0, "sysctl:vm.swappiness", action.Applied)))
	require.NoError(t, w.Append(entry(1, "sysctl:vm.dirty_ratio", action.AlreadySatisfied)))

	m, err := w.Finalize(Completed, "2026-08-31T10:00:05Z")
	require.NoError(t, err)
	assert.Equal(t, Completed, m.State)
	assert.Equal(t, "laptop-perf", m.Profile)
	assert.Equal(t, 2, m.ActionCount)
	require.Len(t, m.Entries, 2)

	// Consolidated manifest.json exists alongside the journal.
	_, err = os.Stat(filepath.Join(store.RunDir("run-1"), "manifest.json"))
	require.NoError(t, err)

	loaded, err := store.Load("run-1")
	require.NoError(t, err)
	assert.Equal(t, m, loaded)
}

func TestBeginRefusesExistingJournal(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Begin("run-1", "p", "2026-08-31T10:00:00Z", 1)
	require.NoError(t, err)

	_, err = store.Begin("run-1", "p", "2026-08-31T10:00:00Z", 1)
	assert.Error(t, err)
}

func TestLoadUnfinishedRunIsAborted(t *testing.T) {
	store := NewStore(t.TempDir())
	w, err := store.Begin("run-1", "p", "2026-08-31T10:00:00Z", 3)
	require.NoError(t, err)
	require.NoError(t, w.Append(entry(0, "a", action.Applied)))
	// No Finalize: the process died here.

	m, err := store.Load("run-1")
	require.NoError(t, err)
	assert.Equal(t, Aborted, m.State)
	assert.Empty(t, m.EndedAt)
	require.Len(t, m.Entries, 1)
}

func TestLoadToleratesTornTrailingLine(t *testing.T) {
	store := NewStore(t.TempDir())
	w, err := store.Begin("run-1", "p", "2026-08-31T10:00:00Z", 2)
	require.NoError(t, err)
	require.NoError(t, w.Append(entry(0, "a", action.Applied)))

	// Simulate a crash mid-write of the second entry.
	journal := filepath.Join(store.RunDir("run-1"), "manifest.jsonl")
	f, err := os.OpenFile(journal, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(`{"type":"entry","entry":{"seq":1,"ac`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	m, err := store.Load("run-1")
	require.NoError(t, err)
	assert.Equal(t, Aborted, m.State)
	require.Len(t, m.Entries, 1)
	assert.Equal(t, "a", m.Entries[0].Action.Key)
}

func TestLoadMissingHeader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "run-1"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run-1", "manifest.jsonl"),
		[]byte(`{"type":"entry","entry":{"seq":0}}`+"\n"), 0o600))

	_, err := NewStore(dir).Load("run-1")
	assert.ErrorContains(t, err, "no run header")
}

func TestAppendAfterFinalize(t *testing.T) {
	store := NewStore(t.TempDir())
	w, err := store.Begin("run-1", "p", "2026-08-31T10:00:00Z", 1)
	require.NoError(t, err)
	_, err = w.Finalize(Completed, "2026-08-31T10:00:01Z")
	require.NoError(t, err)

	assert.ErrorContains(t, w.Append(entry(0, "a", action.Applied)), "after finalize")
	_, err = w.Finalize(Completed, "2026-08-31T10:00:02Z")
	assert.ErrorContains(t, err, "already finalized")
}

func TestRecent(t *testing.T) {
	store := NewStore(t.TempDir())

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		w, err := store.Begin(id, "p", "2026-08-31T10:00:0"+string(rune('0'+i))+"Z", 1)
		require.NoError(t, err)
		require.NoError(t, w.Append(entry(0, "a", action.Applied)))
		_, err = w.Finalize(Completed, "")
		require.NoError(t, err)
	}

	manifests, err := store.Recent(2)
	require.NoError(t, err)
	require.Len(t, manifests, 2)
	assert.Equal(t, "run-c", manifests[0].RunID)
	assert.Equal(t, "run-b", manifests[1].RunID)
}

func TestRecentMissingDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nonexistent"))
	manifests, err := store.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, manifests)
}

func TestMarkReverted(t *testing.T) {
	store := NewStore(t.TempDir())
	w, err := store.Begin("run-1", "p", "2026-08-31T10:00:00Z", 1)
	require.NoError(t, err)
	require.NoError(t, w.Append(entry(0, "a", action.Applied)))
	_, err = w.Finalize(Completed, "2026-08-31T10:00:01Z")
	require.NoError(t, err)

	require.NoError(t, store.MarkReverted("run-1"))

	// Load prefers the consolidated file, so the run now reads REVERTED.
	m, err := store.Load("run-1")
	require.NoError(t, err)
	assert.Equal(t, Reverted, m.State)

	// The journal itself is never rewritten.
	jm, err := loadJournal(filepath.Join(store.RunDir("run-1"), "manifest.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, Completed, jm.State)

	data, err := os.ReadFile(filepath.Join(store.RunDir("run-1"), "manifest.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"REVERTED"`)
}
