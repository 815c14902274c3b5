package main

import (
	"fmt"

	"github.com/dmatts/retune/internal/statedb"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs",
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

		records, err := db.ListRuns(runsLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		for _, r := range records {
			fmt.Printf("%s  %-24s %-24s %2d actions  %s\n", r.ID, r.Profile, r.State, r.ActionCount, r.StartedAt)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}
