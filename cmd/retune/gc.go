package main

import (
	"errors"
	"fmt"

	"github.com/dmatts/retune/internal/gc"
	"github.com/dmatts/retune/internal/statedb"
	"github.com/spf13/cobra"
)

var gcDryRun bool

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Prune old run artifacts per the retention policy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := statedb.Open(cfg.DBPath())
		if err != nil {
			return err
		}
		defer db.Close()

		// The run `revert --last` targets keeps its backups.
		protected := map[string]bool{}
		if entry, err := db.GetState(statedb.LastRunKey); err == nil {
			protected[entry.Value] = true
		} else if !errors.Is(err, statedb.ErrNotFound) {
			return err
		}

		policy := gc.Policy{
			MaxAgeDays: cfg.Retention.MaxAgeDays,
			MaxRuns:    cfg.Retention.MaxRuns,
			DryRun:     gcDryRun,
		}
		result, err := gc.Run(cfg.BaseDir, policy, protected)
		if err != nil {
			return err
		}

		if !gcDryRun {
			for _, id := range result.RunsRemoved {
				if err := db.DeleteRun(id); err != nil {
					fmt.Printf("warning: run index cleanup for %s failed: %v\n", id, err)
				}
			}
		}

		verb := "Removed"
		if gcDryRun {
			verb = "Would remove"
		}
		fmt.Printf("%s %d run(s) and %d audit file(s), freeing %d bytes.\n",
			verb, len(result.RunsRemoved), result.AuditFilesRemoved, result.BytesFreed)
		return nil
	},
}

func init() {
	gcCmd.Flags().BoolVar(&gcDryRun, "dry-run", false, "report without deleting")
	rootCmd.AddCommand(gcCmd)
}
