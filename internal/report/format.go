package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmatts/retune/internal/action"
)

// Format returns the human-readable text summary of a report.
func Format(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (profile %q): %s\n\n", r.RunID, r.Profile, r.State)

	for _, e := range r.Entries {
		line := fmt.Sprintf("  %2d. [%s] %s", e.Seq, e.Outcome.Status, e.Action.Key)
		switch {
		case e.Outcome.Status == action.Skipped && e.Outcome.Reason != "":
			line += " (" + e.Outcome.Reason + ")"
		case e.Outcome.Status == action.Failed:
			line += ": " + e.Outcome.Err
		}
		b.WriteString(line + "\n")
	}
	if r.NotRun > 0 {
		fmt.Fprintf(&b, "  %d action(s) not run (run aborted)\n", r.NotRun)
	}

	fmt.Fprintf(&b, "\nApplied %d, already satisfied %d, skipped %d, failed %d\n",
		r.Applied, r.Satisfied, r.Skipped, r.Failed)
	fmt.Fprintf(&b, "Manifest: %s\nBackups:  %s\n", r.Locations.Manifest, r.Locations.BackupDir)
	return b.String()
}

// FormatMarkdown returns the report as Markdown for terminal rendering.
func FormatMarkdown(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", r.RunID)
	fmt.Fprintf(&b, "- **Profile**: %s\n- **State**: %s\n- **Started**: %s\n", r.Profile, r.State, r.StartedAt)
	if r.EndedAt != "" {
		fmt.Fprintf(&b, "- **Ended**: %s\n", r.EndedAt)
	}
	b.WriteString("\n| # | Action | Outcome | Detail |\n|---|--------|---------|--------|\n")
	for _, e := range r.Entries {
		detail := e.Outcome.Reason
		if e.Outcome.Status == action.Failed {
			detail = e.Outcome.Err
		}
		fmt.Fprintf(&b, "| %d | `%s` | %s | %s |\n", e.Seq, e.Action.Key, e.Outcome.Status, detail)
	}
	fmt.Fprintf(&b, "\nApplied **%d**, already satisfied **%d**, skipped **%d**, failed **%d**",
		r.Applied, r.Satisfied, r.Skipped, r.Failed)
	if r.NotRun > 0 {
		fmt.Fprintf(&b, ", not run **%d**", r.NotRun)
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Artifacts under `%s`.\n", r.Locations.RunDir)
	return b.String()
}

// FormatJSON returns the report as indented JSON.
func FormatJSON(r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: json marshal: %w", err)
	}
	return string(data), nil
}
