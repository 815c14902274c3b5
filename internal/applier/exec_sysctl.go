package applier

import (
	"context"
	"fmt"

	"github.com/dmatts/retune/internal/action"
	"github.com/dmatts/retune/internal/snapshot"
	"github.com/dmatts/retune/internal/sysctl"
)

// sysctlExecutor implements sysctl actions against the runtime kernel
// parameter table. Persisted sysctl.d files are separate write_file actions.
type sysctlExecutor struct {
	a      action.Action
	client *sysctl.Client
	prior  string
}

func (e *sysctlExecutor) Check(ctx context.Context) (checkState, string, error) {
	value, ok, err := e.client.Get(ctx, e.a.Sysctl.Key)
	if err != nil {
		return needsApply, "", err
	}
	if !ok {
		return skip, "kernel parameter not found", nil
	}
	e.prior = value
	if value == e.a.Sysctl.Value {
		return satisfied, "", nil
	}
	return needsApply, "", nil
}

func (e *sysctlExecutor) Snapshot(_ context.Context) (snapshot.Snapshot, error) {
	return snapshot.Snapshot{
		Sysctl: &snapshot.SysctlSnapshot{Key: e.a.Sysctl.Key, Existed: true, Value: e.prior},
	}, nil
}

func (e *sysctlExecutor) Mutate(ctx context.Context) error {
	return e.client.Set(ctx, e.a.Sysctl.Key, e.a.Sysctl.Value)
}

func (e *sysctlExecutor) Verify(ctx context.Context) error {
	value, ok, err := e.client.Get(ctx, e.a.Sysctl.Key)
	if err != nil {
		return err
	}
	if !ok || value != e.a.Sysctl.Value {
		return fmt.Errorf("sysctl %s is %q after set, want %q", e.a.Sysctl.Key, value, e.a.Sysctl.Value)
	}
	return nil
}
