package applier

import (
	"context"

	"github.com/dmatts/retune/internal/action"
)

// PreviewStatus describes what a dry run expects apply to do.
type PreviewStatus string

const (
	WouldApply PreviewStatus = "WOULD_APPLY"
	Satisfied  PreviewStatus = "SATISFIED"
	WouldSkip  PreviewStatus = "WOULD_SKIP"
	CheckError PreviewStatus = "CHECK_ERROR"
)

// PreviewEntry is one action's dry-run result.
type PreviewEntry struct {
	Seq    int           `json:"seq"`
	Action action.Action `json:"action"`
	Status PreviewStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
	Err    string        `json:"error,omitempty"`
}

// Preview queries current state for every action without snapshotting or
// mutating anything.
func Preview(ctx context.Context, env Env, p *action.Profile) []PreviewEntry {
	ap := &Applier{env: env}
	entries := make([]PreviewEntry, 0, len(p.Actions))

	for i := range p.Actions {
		a := p.Actions[i]
		pe := PreviewEntry{Seq: i + 1, Action: a}

		ex, err := ap.executorFor(a)
		if err != nil {
			pe.Status = CheckError
			pe.Err = err.Error()
			entries = append(entries, pe)
			continue
		}

		st, reason, err := ex.Check(ctx)
		switch {
		case err != nil:
			pe.Status = CheckError
			pe.Err = err.Error()
		case st == satisfied:
			pe.Status = Satisfied
		case st == skip:
			pe.Status = WouldSkip
			pe.Reason = reason
		default:
			pe.Status = WouldApply
		}
		entries = append(entries, pe)
	}
	return entries
}
