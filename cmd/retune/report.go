package main

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/dmatts/retune/internal/manifest"
	"github.com/dmatts/retune/internal/report"
	"github.com/spf13/cobra"
)

var (
	reportJSON     bool
	reportMarkdown bool
)

var reportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Show the run report for a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store := manifest.NewStore(cfg.RunsDir())
		m, err := store.Load(args[0])
		if err != nil {
			return fmt.Errorf("manifest for run %s not found: %w", args[0], err)
		}
		r := report.Build(m, store.RunDir(args[0]))

		switch {
		case reportJSON:
			out, err := report.FormatJSON(r)
			if err != nil {
				return err
			}
			fmt.Println(out)
		case reportMarkdown:
			rendered, err := glamour.Render(report.FormatMarkdown(r), "auto")
			if err != nil {
				// Fall back to raw markdown on renderer failure.
				rendered = report.FormatMarkdown(r)
			}
			fmt.Print(rendered)
		default:
			fmt.Print(report.Format(r))
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "emit JSON")
	reportCmd.Flags().BoolVar(&reportMarkdown, "markdown", false, "render as Markdown")
	rootCmd.AddCommand(reportCmd)
}
