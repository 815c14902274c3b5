package applier

import (
	"context"
	"fmt"

	"github.com/dmatts/retune/internal/action"
	"github.com/dmatts/retune/internal/hostexec"
	"github.com/dmatts/retune/internal/snapshot"
)

// commandExecutor implements run_command actions. Idempotence is the
// profile author's contract; a declared check command makes it observable
// (exit 0 means the desired state already holds).
type commandExecutor struct {
	a      action.Action
	runner hostexec.Runner
}

func (e *commandExecutor) Check(ctx context.Context) (checkState, string, error) {
	check := e.a.Command.Check
	if len(check) == 0 {
		return needsApply, "", nil
	}
	res, err := e.runner.Run(ctx, check[0], check[1:]...)
	if err != nil {
		if res.TimedOut {
			return needsApply, "", err
		}
		// Non-zero check exit: state does not hold yet.
		return needsApply, "", nil
	}
	return satisfied, "", nil
}

func (e *commandExecutor) Snapshot(_ context.Context) (snapshot.Snapshot, error) {
	// The only undo information a command can have is the one its author
	// declared. Recording it in the snapshot keeps the revert plan
	// self-contained even if the profile file later changes.
	return snapshot.Snapshot{
		Command: &snapshot.CommandSnapshot{Undo: e.a.Command.Undo},
	}, nil
}

func (e *commandExecutor) Mutate(ctx context.Context) error {
	argv := e.a.Command.Argv
	if _, err := e.runner.Run(ctx, argv[0], argv[1:]...); err != nil {
		return err
	}
	return nil
}

func (e *commandExecutor) Verify(ctx context.Context) error {
	check := e.a.Command.Check
	if len(check) == 0 {
		return nil
	}
	if _, err := e.runner.Run(ctx, check[0], check[1:]...); err != nil {
		return fmt.Errorf("check command failed after apply: %w", err)
	}
	return nil
}
