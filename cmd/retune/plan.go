package main

import (
	"context"
	"fmt"

	"github.com/dmatts/retune/internal/action"
	"github.com/dmatts/retune/internal/applier"
	"github.com/dmatts/retune/internal/config"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan <profile.yaml>",
	Short: "Show what apply would change",
	Long:  "Parse and validate a profile, query current host state for every action, and report what apply would do. Mutates nothing.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		profile, err := action.LoadProfile(args[0])
		if err != nil {
			return err
		}
		return printPreview(cfg, profile)
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}

// printPreview runs the state checks and prints one line per action.
func printPreview(cfg *config.Config, profile *action.Profile) error {
	entries := applier.Preview(context.Background(), buildEnv(cfg), profile)

	fmt.Printf("Plan for profile %q (%d actions):\n\n", profile.Name, len(entries))
	wouldApply := 0
	for _, e := range entries {
		detail := ""
		switch {
		case e.Reason != "":
			detail = " " + styleDim.Render("("+e.Reason+")")
		case e.Err != "":
			detail = " " + styleError.Render(e.Err)
		}
		fmt.Printf("  %2d. %s %s%s\n", e.Seq, e.Action.Key, renderPreview(e.Status), detail)
		if e.Status == applier.WouldApply {
			wouldApply++
		}
	}
	fmt.Printf("\n%d action(s) would change the system.\n", wouldApply)
	return nil
}

func renderPreview(s applier.PreviewStatus) string {
	switch s {
	case applier.WouldApply:
		return styleSuccess.Render("[WOULD APPLY]")
	case applier.Satisfied:
		return styleDim.Render("[SATISFIED]")
	case applier.WouldSkip:
		return styleDim.Render("[SKIP]")
	default:
		return styleError.Render("[CHECK ERROR]")
	}
}
