package applier

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/dmatts/retune/internal/action"
	"github.com/dmatts/retune/internal/hostfs"
	"github.com/dmatts/retune/internal/snapshot"
)

// fileExecutor implements write_file actions. The pre-mutation Stat is
// reused for both the satisfied check and the snapshot so the two always
// describe the same observed state.
type fileExecutor struct {
	a     action.Action
	prior hostfs.FileState
}

func (e *fileExecutor) Check(_ context.Context) (checkState, string, error) {
	st, err := hostfs.Stat(e.a.File.Path)
	if err != nil {
		return needsApply, "", err
	}
	e.prior = st

	if !st.Exists {
		return needsApply, "", nil
	}
	mode, err := e.a.File.FileMode()
	if err != nil {
		return needsApply, "", err
	}
	if bytes.Equal(st.Content, []byte(e.a.File.Content)) && st.Mode == os.FileMode(mode) {
		return satisfied, "", nil
	}
	return needsApply, "", nil
}

func (e *fileExecutor) Snapshot(_ context.Context) (snapshot.Snapshot, error) {
	fs := &snapshot.FileSnapshot{
		Path:    e.a.File.Path,
		Existed: e.prior.Exists,
	}
	if e.prior.Exists {
		fs.Mode = fmt.Sprintf("%o", uint32(e.prior.Mode))
		fs.Content = e.prior.Content
	}
	return snapshot.Snapshot{File: fs}, nil
}

func (e *fileExecutor) Mutate(_ context.Context) error {
	mode, err := e.a.File.FileMode()
	if err != nil {
		return err
	}
	return hostfs.Write(e.a.File.Path, []byte(e.a.File.Content), os.FileMode(mode))
}

func (e *fileExecutor) Verify(_ context.Context) error {
	st, err := hostfs.Stat(e.a.File.Path)
	if err != nil {
		return err
	}
	if !st.Exists {
		return fmt.Errorf("file %s missing after write", e.a.File.Path)
	}
	if !bytes.Equal(st.Content, []byte(e.a.File.Content)) {
		return fmt.Errorf("file %s content differs after write", e.a.File.Path)
	}
	return nil
}
