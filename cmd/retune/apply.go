package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmatts/retune/internal/action"
	"github.com/dmatts/retune/internal/applier"
	"github.com/dmatts/retune/internal/audit"
	"github.com/dmatts/retune/internal/filelock"
	"github.com/dmatts/retune/internal/hostfs"
	"github.com/dmatts/retune/internal/manifest"
	"github.com/dmatts/retune/internal/report"
	"github.com/dmatts/retune/internal/revert"
	"github.com/dmatts/retune/internal/snapshot"
	"github.com/dmatts/retune/internal/statedb"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var applyDryRun bool

var applyCmd = &cobra.Command{
	Use:   "apply <profile.yaml>",
	Short: "Apply a tuning profile",
	Long:  "Apply the profile's actions in declaration order, snapshotting prior state before every mutation and journaling each outcome.",
	Args:  cobra.ExactArgs(1),
	RunE:  runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "show what would change, mutate nothing")
	rootCmd.AddCommand(applyCmd)
}

// newRunID returns a timestamp-based run identifier with a short random
// suffix to stay unique within a second.
func newRunID(now time.Time) string {
	return now.UTC().Format("20060102T150405Z") + "-" + uuid.New().String()[:8]
}

func runApply(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create dirs: %w", err)
	}

	profile, err := action.LoadProfile(args[0])
	if err != nil {
		return err
	}

	if applyDryRun {
		return printPreview(cfg, profile)
	}

	lock, err := filelock.Acquire(cfg.BaseDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	db, err := statedb.Open(cfg.DBPath())
	if err != nil {
		return err
	}
	defer db.Close()

	start := time.Now()
	runID := newRunID(start)
	startedAt := start.UTC().Format(time.RFC3339)

	store := manifest.NewStore(cfg.RunsDir())
	w, err := store.Begin(runID, profile.Name, startedAt, len(profile.Actions))
	if err != nil {
		return err
	}
	snaps, err := snapshot.NewStore(store.RunDir(runID))
	if err != nil {
		return err
	}
	// Keep a copy of the profile as applied next to the manifest.
	if err := hostfs.Copy(args[0], filepath.Join(store.RunDir(runID), "profile.yaml")); err != nil {
		fmt.Fprintf(os.Stderr, "warning: profile archive failed: %v\n", err)
	}

	if err := db.InsertRun(statedb.RunRecord{
		ID:          runID,
		Profile:     profile.Name,
		State:       string(manifest.Running),
		ActionCount: len(profile.Actions),
		StartedAt:   startedAt,
	}); err != nil {
		return err
	}

	logger, auditErr := audit.NewLogger(cfg.AuditDir())
	if auditErr != nil {
		fmt.Fprintf(os.Stderr, "warning: audit init failed: %v\n", auditErr)
	}

	fmt.Printf("Run %s: applying %q (%d actions)\n", runID, profile.Name, len(profile.Actions))

	ap := applier.New(buildEnv(cfg), snaps, w, &cliObserver{logger: logger, runID: runID})
	m, err := ap.Run(context.Background(), profile)
	if err != nil {
		// Infrastructure failure; the journal holds whatever was recorded.
		db.UpdateRunState(runID, string(manifest.Aborted))
		return err
	}

	if err := db.UpdateRunState(runID, string(m.State)); err != nil {
		fmt.Fprintf(os.Stderr, "warning: run index update failed: %v\n", err)
	}
	if err := db.SetState(statedb.LastRunKey, runID); err != nil {
		fmt.Fprintf(os.Stderr, "warning: last-run pointer update failed: %v\n", err)
	}
	if err := revert.WritePlan(store.RunDir(runID), revert.BuildPlan(m)); err != nil {
		fmt.Fprintf(os.Stderr, "warning: revert descriptor write failed: %v\n", err)
	}

	r := report.Build(m, store.RunDir(runID))
	fmt.Println("\n" + report.Format(r))

	switch m.State {
	case manifest.Completed:
		fmt.Println(styleSuccess.Render(fmt.Sprintf("Done (%.1fs). Revert with: retune revert %s", time.Since(start).Seconds(), runID)))
		return nil
	case manifest.CompletedWithFailures:
		fmt.Println(styleError.Render(fmt.Sprintf("%d best-effort action(s) failed.", r.Failed)))
		return errPartialFailure
	default:
		return fmt.Errorf("run aborted by fatal action failure; %d action(s) not run; revert with: retune revert %s", r.NotRun, runID)
	}
}

// cliObserver prints per-action progress and mirrors outcomes into the
// audit log.
type cliObserver struct {
	logger *audit.Logger
	runID  string
}

func (o *cliObserver) ActionStarted(seq int, a action.Action) {
	fmt.Printf("  %2d. %s %s", seq, a.Key, styleDim.Render("..."))
}

func (o *cliObserver) ActionFinished(e manifest.Entry) {
	detail := ""
	switch {
	case e.Outcome.Reason != "":
		detail = " " + styleDim.Render("("+e.Outcome.Reason+")")
	case e.Outcome.Err != "":
		detail = " " + styleError.Render(firstLine(e.Outcome.Err))
	}
	fmt.Printf("\r  %2d. %s %s%s\n", e.Seq, e.Action.Key, renderOutcome(e.Outcome.Status.String()), detail)

	if o.logger != nil {
		o.logger.Log(audit.Entry{
			RunID:     o.runID,
			ActionKey: e.Action.Key,
			Kind:      string(e.Action.Kind),
			Outcome:   e.Outcome.Status.String(),
			ErrorKind: e.ErrorKind,
			Duration:  time.Duration(e.DurationMs) * time.Millisecond,
			Error:     e.Outcome.Err,
		})
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
