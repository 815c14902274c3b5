package applier

import (
	"context"
	"fmt"

	"github.com/dmatts/retune/internal/action"
	"github.com/dmatts/retune/internal/services"
	"github.com/dmatts/retune/internal/snapshot"
)

// serviceExecutor implements service_state actions. An absent unit is a
// skip, not a failure: tuning profiles routinely reference units that are
// not installed on every host.
type serviceExecutor struct {
	a      action.Action
	client *services.Client
	prior  services.State
}

func (e *serviceExecutor) Check(ctx context.Context) (checkState, string, error) {
	st, err := e.client.Query(ctx, e.a.Service.Unit)
	if err != nil {
		return needsApply, "", err
	}
	e.prior = st

	if !st.Exists {
		return skip, "unit not found", nil
	}
	if e.desiredHolds(st) {
		return satisfied, "", nil
	}
	return needsApply, "", nil
}

func (e *serviceExecutor) desiredHolds(st services.State) bool {
	d := e.a.Service
	if d.Masked != nil && st.Masked != *d.Masked {
		return false
	}
	if d.Enabled != nil && st.Enabled != *d.Enabled {
		return false
	}
	if d.Active != nil && st.Active != *d.Active {
		return false
	}
	return true
}

func (e *serviceExecutor) Snapshot(_ context.Context) (snapshot.Snapshot, error) {
	return snapshot.Snapshot{
		Service: &snapshot.ServiceSnapshot{Unit: e.a.Service.Unit, State: e.prior},
	}, nil
}

func (e *serviceExecutor) Mutate(ctx context.Context) error {
	d := e.a.Service
	// Unmasking must precede enable/start; masking comes last so the unit
	// is not mutated through a mask.
	if d.Masked != nil && !*d.Masked && e.prior.Masked {
		if err := e.client.SetMasked(ctx, d.Unit, false); err != nil {
			return err
		}
	}
	if d.Enabled != nil && e.prior.Enabled != *d.Enabled {
		if err := e.client.SetEnabled(ctx, d.Unit, *d.Enabled); err != nil {
			return err
		}
	}
	if d.Active != nil && e.prior.Active != *d.Active {
		if err := e.client.SetActive(ctx, d.Unit, *d.Active); err != nil {
			return err
		}
	}
	if d.Masked != nil && *d.Masked && !e.prior.Masked {
		if err := e.client.SetMasked(ctx, d.Unit, true); err != nil {
			return err
		}
	}
	return nil
}

func (e *serviceExecutor) Verify(ctx context.Context) error {
	st, err := e.client.Query(ctx, e.a.Service.Unit)
	if err != nil {
		return err
	}
	if !e.desiredHolds(st) {
		return fmt.Errorf("unit %s not in desired state after mutation", e.a.Service.Unit)
	}
	return nil
}
