// Package revert plans and executes the inverse of a recorded run. Inverses
// run in reverse declaration order, and every step is independently
// best-effort: one failed restore never stops the rest.
package revert

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmatts/retune/internal/action"
	"github.com/dmatts/retune/internal/applier"
	"github.com/dmatts/retune/internal/manifest"
	"github.com/dmatts/retune/internal/snapshot"
)

// Step is one planned inverse. NoOp steps are kept in the plan so the
// revert record stays symmetric with the manifest.
type Step struct {
	Seq       int         `json:"seq"` // original manifest entry seq
	ActionKey string      `json:"action_key"`
	Kind      action.Kind `json:"kind"`
	NoOp      bool        `json:"no_op,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// Plan is the ordered inverse of one run, later actions first.
type Plan struct {
	RunID     string `json:"run_id"`
	PlannedAt string `json:"planned_at"`
	Steps     []Step `json:"steps"`
}

// StepStatus is the result of executing one inverse step.
type StepStatus string

const (
	StepRestored StepStatus = "RESTORED"
	StepNoOp     StepStatus = "NOOP"
	StepFailed   StepStatus = "FAILED"
)

// StepResult pairs a planned step with its execution outcome.
type StepResult struct {
	Step   Step       `json:"step"`
	Status StepStatus `json:"status"`
	Err    string     `json:"error,omitempty"`
}

// Result summarizes one revert execution.
type Result struct {
	RunID     string       `json:"run_id"`
	StartedAt string       `json:"started_at"`
	EndedAt   string       `json:"ended_at"`
	Steps     []StepResult `json:"steps"`
	Restored  int          `json:"restored"`
	NoOps     int          `json:"noops"`
	Failures  int          `json:"failures"`
}

// New creates a Planner restoring through the given host boundaries.
func New(env applier.Env, store *snapshot.Store) *Planner {
	return &Planner{env: env, store: store}
}

// Planner builds and executes revert plans for one run's backup store.
type Planner struct {
	env   applier.Env
	store *snapshot.Store
}

// BuildPlan produces the inverse step list for a manifest, in LIFO order.
// Only Applied entries restore anything; AlreadySatisfied, Skipped, and
// Failed entries never mutated the host and plan as no-ops.
func BuildPlan(m *manifest.Manifest) *Plan {
	p := &Plan{RunID: m.RunID, PlannedAt: time.Now().UTC().Format(time.RFC3339)}
	for i := len(m.Entries) - 1; i >= 0; i-- {
		e := m.Entries[i]
		step := Step{Seq: e.Seq, ActionKey: e.Action.Key, Kind: e.Action.Kind}
		switch {
		case !e.Outcome.Mutated():
			step.NoOp = true
			step.Reason = "not mutated (" + e.Outcome.Status.String() + ")"
		case e.Action.Kind == action.InstallPackages:
			step.NoOp = true
			step.Reason = "package removal out of scope"
		}
		p.Steps = append(p.Steps, step)
	}
	return p
}

// Execute runs a plan, best-effort per step, and returns the full result.
func (pl *Planner) Execute(ctx context.Context, plan *Plan) *Result {
	res := &Result{RunID: plan.RunID, StartedAt: time.Now().UTC().Format(time.RFC3339)}

	for _, step := range plan.Steps {
		sr := StepResult{Step: step}
		if step.NoOp {
			sr.Status = StepNoOp
		} else if err := pl.executeStep(ctx, step); err != nil {
			sr.Status = StepFailed
			sr.Err = err.Error()
		} else {
			sr.Status = StepRestored
		}

		switch sr.Status {
		case StepRestored:
			res.Restored++
		case StepNoOp:
			res.NoOps++
		case StepFailed:
			res.Failures++
		}
		res.Steps = append(res.Steps, sr)
	}

	res.EndedAt = time.Now().UTC().Format(time.RFC3339)
	return res
}

func (pl *Planner) executeStep(ctx context.Context, step Step) error {
	snap, ok, err := pl.store.Get(step.ActionKey)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("revert: no snapshot for %s", step.ActionKey)
	}
	if snap.NoOp {
		// Plan and store disagree; nothing to restore.
		return nil
	}

	switch step.Kind {
	case action.WriteFile:
		return pl.store.RestoreFile(snap)
	case action.ServiceState:
		return pl.restoreService(ctx, snap)
	case action.Sysctl:
		if snap.Sysctl == nil {
			return fmt.Errorf("revert: %s has no sysctl state", step.ActionKey)
		}
		return pl.env.Sysctl.Set(ctx, snap.Sysctl.Key, snap.Sysctl.Value)
	case action.RunCommand:
		if snap.Command == nil || len(snap.Command.Undo) == 0 {
			// No declared inverse; recorded as a no-op by the planner, but
			// tolerate reaching here from a hand-edited plan.
			return nil
		}
		undo := snap.Command.Undo
		if _, err := pl.env.Runner.Run(ctx, undo[0], undo[1:]...); err != nil {
			return err
		}
		return nil
	case action.InstallPackages:
		return nil
	default:
		return fmt.Errorf("revert: no inverse for kind %q", step.Kind)
	}
}

// restoreService puts a unit back to its snapshotted enable/active/mask
// state. Mask state is restored first so enable/start are not attempted
// through a mask left behind by the run.
func (pl *Planner) restoreService(ctx context.Context, snap snapshot.Snapshot) error {
	if snap.Service == nil {
		return fmt.Errorf("revert: %s has no service state", snap.ActionKey)
	}
	unit := snap.Service.Unit
	prior := snap.Service.State

	cur, err := pl.env.Services.Query(ctx, unit)
	if err != nil {
		return err
	}
	if !cur.Exists {
		return fmt.Errorf("revert: unit %s no longer exists", unit)
	}

	if cur.Masked != prior.Masked {
		if err := pl.env.Services.SetMasked(ctx, unit, prior.Masked); err != nil {
			return err
		}
	}
	if !prior.Masked {
		if cur.Enabled != prior.Enabled {
			if err := pl.env.Services.SetEnabled(ctx, unit, prior.Enabled); err != nil {
				return err
			}
		}
		if cur.Active != prior.Active {
			if err := pl.env.Services.SetActive(ctx, unit, prior.Active); err != nil {
				return err
			}
		}
	}
	return nil
}

// WritePlan persists the structured revert descriptor into the run
// directory. It replaces the string-templated revert script the problem
// space traditionally generates.
func WritePlan(runDir string, plan *Plan) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("revert: marshal plan: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "revert.json"), data, 0o600); err != nil {
		return fmt.Errorf("revert: write plan: %w", err)
	}
	return nil
}

// WriteResult persists the revert execution record into the run directory.
func WriteResult(runDir string, res *Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("revert: marshal result: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "revert_result.json"), data, 0o600); err != nil {
		return fmt.Errorf("revert: write result: %w", err)
	}
	return nil
}
