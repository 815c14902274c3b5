package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmatts/retune/internal/filelock"
	"github.com/dmatts/retune/internal/manifest"
	"github.com/dmatts/retune/internal/revert"
	"github.com/dmatts/retune/internal/snapshot"
	"github.com/dmatts/retune/internal/statedb"
	"github.com/spf13/cobra"
)

var revertLast bool

var revertCmd = &cobra.Command{
	Use:   "revert [run-id]",
	Short: "Undo a recorded run",
	Long:  "Restore every target a recorded run mutated, in reverse order of application. Each restore is best-effort: one failure never stops the rest.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRevert,
}

func init() {
	revertCmd.Flags().BoolVar(&revertLast, "last", false, "revert the most recent apply run")
	rootCmd.AddCommand(revertCmd)
}

func runRevert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
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

	var runID string
	switch {
	case revertLast:
		entry, err := db.GetState(statedb.LastRunKey)
		if err != nil {
			if errors.Is(err, statedb.ErrNotFound) {
				return fmt.Errorf("no recorded runs to revert")
			}
			return err
		}
		runID = entry.Value
	case len(args) == 1:
		runID = args[0]
	default:
		return fmt.Errorf("a run id or --last is required")
	}

	store := manifest.NewStore(cfg.RunsDir())
	m, err := store.Load(runID)
	if err != nil {
		return fmt.Errorf("manifest for run %s not found: %w", runID, err)
	}
	snaps, err := snapshot.Open(store.RunDir(runID))
	if err != nil {
		return fmt.Errorf("backup store for run %s not found: %w", runID, err)
	}

	plan := revert.BuildPlan(m)
	fmt.Printf("Reverting run %s (%d steps, %s)\n", runID, len(plan.Steps), m.State)

	planner := revert.New(buildEnv(cfg), snaps)
	res := planner.Execute(context.Background(), plan)

	if err := revert.WriteResult(store.RunDir(runID), res); err != nil {
		fmt.Fprintf(os.Stderr, "warning: revert record write failed: %v\n", err)
	}

	for _, sr := range res.Steps {
		detail := ""
		if sr.Err != "" {
			detail = " " + styleError.Render(sr.Err)
		} else if sr.Step.Reason != "" {
			detail = " " + styleDim.Render("("+sr.Step.Reason+")")
		}
		fmt.Printf("  %2d. %s [%s]%s\n", sr.Step.Seq, sr.Step.ActionKey, sr.Status, detail)
	}
	fmt.Printf("\nRestored %d, no-ops %d, failures %d\n", res.Restored, res.NoOps, res.Failures)

	if res.Failures == 0 {
		if err := store.MarkReverted(runID); err != nil {
			fmt.Fprintf(os.Stderr, "warning: manifest update failed: %v\n", err)
		}
		if err := db.UpdateRunState(runID, string(manifest.Reverted)); err != nil && !errors.Is(err, statedb.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "warning: run index update failed: %v\n", err)
		}
		fmt.Println(styleSuccess.Render("Revert complete."))
		return nil
	}
	return errPartialFailure
}
