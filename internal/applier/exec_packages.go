package applier

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmatts/retune/internal/action"
	"github.com/dmatts/retune/internal/pkgmgr"
	"github.com/dmatts/retune/internal/snapshot"
)

// packagesExecutor implements install_packages actions. Removal is never
// performed on revert; the prior installed set is captured for reporting.
type packagesExecutor struct {
	a      action.Action
	client *pkgmgr.Client
	prior  map[string]bool
}

func (e *packagesExecutor) Check(ctx context.Context) (checkState, string, error) {
	e.prior = make(map[string]bool, len(e.a.Packages.Names))
	all := true
	for _, name := range e.a.Packages.Names {
		installed, err := e.client.Installed(ctx, name)
		if err != nil {
			return needsApply, "", err
		}
		e.prior[name] = installed
		if !installed {
			all = false
		}
	}
	if all {
		return satisfied, "", nil
	}
	return needsApply, "", nil
}

func (e *packagesExecutor) Snapshot(_ context.Context) (snapshot.Snapshot, error) {
	return snapshot.Snapshot{
		Packages: &snapshot.PackagesSnapshot{PriorInstalled: e.prior},
	}, nil
}

func (e *packagesExecutor) Mutate(ctx context.Context) error {
	results := e.client.Install(ctx, e.a.Packages.Names)
	var failed []string
	for _, r := range results {
		if r.Err != "" {
			failed = append(failed, fmt.Sprintf("%s (%s)", r.Name, r.Err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("install failed for %s", strings.Join(failed, ", "))
	}
	return nil
}

func (e *packagesExecutor) Verify(ctx context.Context) error {
	for _, name := range e.a.Packages.Names {
		installed, err := e.client.Installed(ctx, name)
		if err != nil {
			return err
		}
		if !installed {
			return fmt.Errorf("package %s not installed after install", name)
		}
	}
	return nil
}
