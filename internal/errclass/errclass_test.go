package errclass

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		stderr string
		want   Kind
	}{
		{"nil", nil, "", MutationFailed},
		{"deadline", fmt.Errorf("run: %w", context.DeadlineExceeded), "", TimeoutExceeded},
		{"canceled", context.Canceled, "", TimeoutExceeded},
		{"os permission", fmt.Errorf("write: %w", os.ErrPermission), "", PermissionDenied},
		{"os not exist", fmt.Errorf("stat: %w", os.ErrNotExist), "", TargetNotFound},
		{"stderr permission", errors.New("exit status 1"), "systemctl: Permission denied", PermissionDenied},
		{"stderr polkit", errors.New("exit status 1"), "Interactive authentication required.", PermissionDenied},
		{"stderr unit missing", errors.New("exit status 4"), "Unit ghost.service not found.", TargetNotFound},
		{"stderr apt missing", errors.New("exit status 100"), "E: Unable to locate package ghost", TargetNotFound},
		{"error text not found", errors.New("sysctl: cannot stat: No such file or directory"), "", TargetNotFound},
		{"plain failure", errors.New("exit status 1"), "something broke", MutationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err, tt.stderr))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "MUTATION_FAILED", MutationFailed.String())
	assert.Equal(t, "PERMISSION_DENIED", PermissionDenied.String())
	assert.Equal(t, "TARGET_NOT_FOUND", TargetNotFound.String())
	assert.Equal(t, "SNAPSHOT_FAILED", SnapshotFailed.String())
	assert.Equal(t, "TIMEOUT_EXCEEDED", TimeoutExceeded.String())
}
