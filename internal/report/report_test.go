package report

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmatts/retune/internal/action"
	"github.com/dmatts/retune/internal/manifest"
)

func fixtureManifest() *manifest.Manifest {
	return &manifest.Manifest{
		RunID:       "20260831T100000Z-abcd1234",
		Profile:     "laptop-perf",
		State:       manifest.Aborted,
		StartedAt:   "2026-08-31T10:00:00Z",
		EndedAt:     "2026-08-31T10:00:07Z",
		ActionCount: 5,
		Entries: []manifest.Entry{
			{
				Seq:     1,
				Action:  action.Action{Key: "file:/etc/sysctl.d/99-perf.conf", Kind: action.WriteFile},
				Outcome: action.Outcome{Status: action.Applied},
			},
			{
				Seq:     2,
				Action:  action.Action{Key: "sysctl:vm.swappiness", Kind: action.Sysctl},
				Outcome: action.Outcome{Status: action.AlreadySatisfied},
			},
			{
				Seq:     3,
				Action:  action.Action{Key: "service:ghost.service", Kind: action.ServiceState},
				Outcome: action.Outcome{Status: action.Skipped, Reason: "unit not found"},
			},
			{
				Seq:     4,
				Action:  action.Action{Key: "command:cpufreq-set", Kind: action.RunCommand},
				Outcome: action.Outcome{Status: action.Failed, Err: "exit status 1"},
			},
		},
	}
}

func TestBuild(t *testing.T) {
	r := Build(fixtureManifest(), "/var/lib/retune/runs/20260831T100000Z-abcd1234")

	assert.Equal(t, 1, r.Applied)
	assert.Equal(t, 1, r.Satisfied)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.NotRun)
	assert.Equal(t, "/var/lib/retune/runs/20260831T100000Z-abcd1234/manifest.jsonl", r.Locations.Manifest)
	assert.Equal(t, "/var/lib/retune/runs/20260831T100000Z-abcd1234/backup", r.Locations.BackupDir)
}

func TestBuildNotRunNeverNegative(t *testing.T) {
	m := fixtureManifest()
	m.ActionCount = 2
	r := Build(m, "/tmp/run")
	assert.Zero(t, r.NotRun)
}

func TestFormatGolden(t *testing.T) {
	r := Build(fixtureManifest(), "/var/lib/retune/runs/20260831T100000Z-abcd1234")

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "report_text", []byte(Format(r)))
	g.Assert(t, "report_markdown", []byte(FormatMarkdown(r)))
}

func TestFormatJSON(t *testing.T) {
	r := Build(fixtureManifest(), "/var/lib/retune/runs/20260831T100000Z-abcd1234")

	out, err := FormatJSON(r)
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, r.RunID, decoded.RunID)
	assert.Equal(t, r.Applied, decoded.Applied)
}
