package gc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmatts/retune/internal/action"
	"github.com/dmatts/retune/internal/manifest"
)

// makeRun journals one finished run directory with the given start time.
func makeRun(t *testing.T, baseDir, runID string, started time.Time, state manifest.RunState) {
	t.Helper()
	store := manifest.NewStore(filepath.Join(baseDir, "runs"))
	w, err := store.Begin(runID, "p", started.UTC().Format(time.RFC3339), 1)
	require.NoError(t, err)
	require.NoError(t, w.Append(manifest.Entry{
		Seq:     1,
		Action:  action.Action{Key: "sysctl:vm.swappiness", Kind: action.Sysctl},
		Outcome: action.Outcome{Status: action.Applied},
	}))
	_, err = w.Finalize(state, started.Add(time.Minute).UTC().Format(time.RFC3339))
	require.NoError(t, err)
}

func runIDs(baseDir string) []string {
	entries, _ := os.ReadDir(filepath.Join(baseDir, "runs"))
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.Name())
	}
	return ids
}

func TestRunMaxRuns(t *testing.T) {
	base := t.TempDir()
	now := time.Now()
	makeRun(t, base, "run-old", now.Add(-3*time.Hour), manifest.Completed)
	makeRun(t, base, "run-older", now.Add(-4*time.Hour), manifest.Completed)
	makeRun(t, base, "run-new", now.Add(-1*time.Hour), manifest.Completed)
	makeRun(t, base, "run-mid", now.Add(-2*time.Hour), manifest.Completed)

	res, err := Run(base, Policy{MaxRuns: 2}, nil)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"run-old", "run-older"}, res.RunsRemoved)
	assert.Positive(t, res.BytesFreed)
	assert.ElementsMatch(t, []string{"run-new", "run-mid"}, runIDs(base))
}

func TestRunMaxAge(t *testing.T) {
	base := t.TempDir()
	now := time.Now()
	makeRun(t, base, "run-ancient", now.AddDate(0, 0, -30), manifest.Completed)
	makeRun(t, base, "run-recent", now.Add(-time.Hour), manifest.Completed)

	res, err := Run(base, Policy{MaxAgeDays: 7}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"run-ancient"}, res.RunsRemoved)
	assert.Equal(t, []string{"run-recent"}, runIDs(base))
}

func TestRunProtected(t *testing.T) {
	base := t.TempDir()
	now := time.Now()
	makeRun(t, base, "run-last", now.AddDate(0, 0, -30), manifest.Completed)
	makeRun(t, base, "run-other", now.AddDate(0, 0, -30), manifest.Completed)

	res, err := Run(base, Policy{MaxAgeDays: 7}, map[string]bool{"run-last": true})
	require.NoError(t, err)

	assert.Equal(t, []string{"run-other"}, res.RunsRemoved)
	assert.Equal(t, []string{"run-last"}, runIDs(base))
}

func TestRunKeepsRunning(t *testing.T) {
	base := t.TempDir()
	makeRun(t, base, "run-live", time.Now().AddDate(0, 0, -30), manifest.Running)

	res, err := Run(base, Policy{MaxAgeDays: 7}, nil)
	require.NoError(t, err)

	assert.Empty(t, res.RunsRemoved)
	assert.Equal(t, []string{"run-live"}, runIDs(base))
}

func TestDryRun(t *testing.T) {
	base := t.TempDir()
	makeRun(t, base, "run-old", time.Now().AddDate(0, 0, -30), manifest.Completed)

	res, err := Run(base, Policy{MaxAgeDays: 7, DryRun: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"run-old"}, res.RunsRemoved)
	// Nothing was actually deleted.
	assert.Equal(t, []string{"run-old"}, runIDs(base))
}

func TestAuditCleanup(t *testing.T) {
	base := t.TempDir()
	auditDir := filepath.Join(base, "audit")
	require.NoError(t, os.MkdirAll(auditDir, 0o700))

	old := time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	recent := time.Now().Format("2006-01-02")
	for _, name := range []string{old + ".jsonl", recent + ".jsonl", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(auditDir, name), []byte("x\n"), 0o600))
	}

	res, err := Run(base, Policy{MaxAgeDays: 7}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.AuditFilesRemoved)
	_, err = os.Stat(filepath.Join(auditDir, old+".jsonl"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(auditDir, recent+".jsonl"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(auditDir, "notes.txt"))
	assert.NoError(t, err)
}
