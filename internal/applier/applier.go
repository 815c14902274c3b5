// Package applier executes an ordered action list against the live host.
// Every mutation is preceded by its snapshot write; an action whose snapshot
// cannot be taken fails closed and never mutates.
package applier

import (
	"context"
	"fmt"
	"time"

	"github.com/dmatts/retune/internal/action"
	"github.com/dmatts/retune/internal/errclass"
	"github.com/dmatts/retune/internal/hostexec"
	"github.com/dmatts/retune/internal/manifest"
	"github.com/dmatts/retune/internal/pkgmgr"
	"github.com/dmatts/retune/internal/services"
	"github.com/dmatts/retune/internal/snapshot"
	"github.com/dmatts/retune/internal/sysctl"
)

// Phase is the lifecycle position of one action inside the applier.
type Phase int

const (
	Pending Phase = iota
	Snapshotting
	Mutating
	Done
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "PENDING"
	case Snapshotting:
		return "SNAPSHOTTING"
	case Mutating:
		return "MUTATING"
	case Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Env bundles the host boundaries the applier mutates through.
type Env struct {
	Services *services.Client
	Sysctl   *sysctl.Client
	Packages *pkgmgr.Client
	Runner   hostexec.Runner // run_command actions
}

// Observer receives progress callbacks. Implementations must not block.
type Observer interface {
	ActionStarted(seq int, a action.Action)
	ActionFinished(e manifest.Entry)
}

// checkState is the result of querying an action's current state.
type checkState int

const (
	needsApply checkState = iota
	satisfied
	skip
)

// executor is the per-kind contract: query, snapshot, mutate, verify.
type executor interface {
	// Check queries current state. reason is set when state is skip.
	Check(ctx context.Context) (state checkState, reason string, err error)
	// Snapshot captures the prior state sufficient to undo the mutation.
	Snapshot(ctx context.Context) (snapshot.Snapshot, error)
	// Mutate applies the desired state.
	Mutate(ctx context.Context) error
	// Verify re-queries the target and confirms the postcondition.
	Verify(ctx context.Context) error
}

// Applier runs actions strictly in declaration order, journaling each
// outcome as it happens.
type Applier struct {
	env   Env
	store *snapshot.Store
	w     *manifest.Writer
	obs   Observer
}

// New returns an Applier writing snapshots to store and entries to w.
// obs may be nil.
func New(env Env, store *snapshot.Store, w *manifest.Writer, obs Observer) *Applier {
	return &Applier{env: env, store: store, w: w, obs: obs}
}

// Run applies the profile and finalizes the manifest. The returned manifest
// carries the terminal run state:
//
//	Completed             every action Applied/AlreadySatisfied/Skipped
//	CompletedWithFailures best-effort failures only
//	Aborted               a fatal action failed; the rest never ran
//
// The error return is reserved for infrastructure failures (journal or
// snapshot store unusable), in which case the run stops immediately.
func (ap *Applier) Run(ctx context.Context, p *action.Profile) (*manifest.Manifest, error) {
	state := manifest.Completed
	sysctlMutated := false

	for i := range p.Actions {
		a := p.Actions[i]
		if ap.obs != nil {
			ap.obs.ActionStarted(i+1, a)
		}

		entry := ap.applyOne(ctx, i+1, a)
		if err := ap.w.Append(entry); err != nil {
			return nil, fmt.Errorf("applier: journal entry %d: %w", i+1, err)
		}
		if ap.obs != nil {
			ap.obs.ActionFinished(entry)
		}

		if entry.Outcome.Status == action.Failed {
			if a.Fatal() {
				state = manifest.Aborted
				break
			}
			state = manifest.CompletedWithFailures
		}
		if a.Kind == action.Sysctl && entry.Outcome.Status == action.Applied {
			sysctlMutated = true
		}
	}

	// One reload after the last kernel-parameter change picks up any
	// sysctl.d drop-ins written in the same run.
	if sysctlMutated && state != manifest.Aborted {
		if err := ap.env.Sysctl.Reload(ctx); err != nil {
			state = manifest.CompletedWithFailures
		}
	}

	endedAt := time.Now().UTC().Format(time.RFC3339)
	m, err := ap.w.Finalize(state, endedAt)
	if err != nil {
		return nil, fmt.Errorf("applier: finalize manifest: %w", err)
	}
	return m, nil
}

// applyOne drives one action through Snapshotting -> Mutating and produces
// its manifest entry. It never returns an error: every failure mode is an
// Outcome.
func (ap *Applier) applyOne(ctx context.Context, seq int, a action.Action) manifest.Entry {
	start := time.Now()
	entry := manifest.Entry{Seq: seq, Action: a}

	finish := func(o action.Outcome, kind string) manifest.Entry {
		entry.Outcome = o
		entry.ErrorKind = kind
		entry.DurationMs = time.Since(start).Milliseconds()
		return entry
	}

	ex, err := ap.executorFor(a)
	if err != nil {
		return finish(action.Outcome{Status: action.Failed, Err: err.Error()}, errclass.MutationFailed.String())
	}

	st, reason, err := ex.Check(ctx)
	if err != nil {
		kind := errclass.Classify(err, "")
		// An unreadable target means the snapshot could never be taken
		// either: fail closed before touching anything.
		return finish(action.Outcome{Status: action.Failed, Err: err.Error()}, kind.String())
	}

	switch st {
	case skip:
		// Nothing to do and nothing to revert; record a no-op snapshot so
		// the entry stays symmetric for the revert planner.
		if err := ap.store.Put(snapshot.Snapshot{ActionKey: a.Key, Kind: a.Kind, NoOp: true}); err != nil {
			return finish(action.Outcome{Status: action.Failed, Err: err.Error()}, errclass.SnapshotFailed.String())
		}
		entry.SnapshotKey = a.Key
		return finish(action.Outcome{Status: action.Skipped, Reason: reason}, "")
	case satisfied:
		if err := ap.store.Put(snapshot.Snapshot{ActionKey: a.Key, Kind: a.Kind, NoOp: true}); err != nil {
			return finish(action.Outcome{Status: action.Failed, Err: err.Error()}, errclass.SnapshotFailed.String())
		}
		entry.SnapshotKey = a.Key
		return finish(action.Outcome{Status: action.AlreadySatisfied}, "")
	}

	// Snapshotting. Failure here is fatal for the action and no mutation
	// is attempted.
	snap, err := ex.Snapshot(ctx)
	if err != nil {
		return finish(action.Outcome{Status: action.Failed, Err: err.Error()}, errclass.SnapshotFailed.String())
	}
	snap.ActionKey = a.Key
	snap.Kind = a.Kind
	if err := ap.store.Put(snap); err != nil {
		return finish(action.Outcome{Status: action.Failed, Err: err.Error()}, errclass.SnapshotFailed.String())
	}
	entry.SnapshotKey = a.Key

	// Mutating.
	if err := ex.Mutate(ctx); err != nil {
		kind := errclass.Classify(err, "")
		return finish(action.Outcome{Status: action.Failed, Err: err.Error()}, kind.String())
	}

	// Postcondition verification where cheaply checkable.
	if err := ex.Verify(ctx); err != nil {
		return finish(action.Outcome{Status: action.Failed, Err: fmt.Sprintf("postcondition: %v", err)}, errclass.MutationFailed.String())
	}

	return finish(action.Outcome{Status: action.Applied}, "")
}

func (ap *Applier) executorFor(a action.Action) (executor, error) {
	switch a.Kind {
	case action.WriteFile:
		return &fileExecutor{a: a}, nil
	case action.ServiceState:
		return &serviceExecutor{a: a, client: ap.env.Services}, nil
	case action.Sysctl:
		return &sysctlExecutor{a: a, client: ap.env.Sysctl}, nil
	case action.RunCommand:
		return &commandExecutor{a: a, runner: ap.env.Runner}, nil
	case action.InstallPackages:
		return &packagesExecutor{a: a, client: ap.env.Packages}, nil
	default:
		return nil, fmt.Errorf("applier: no executor for kind %q", a.Kind)
	}
}
