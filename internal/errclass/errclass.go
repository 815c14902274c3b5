// Package errclass classifies action failures into the error kinds the
// manifest and report use, based on the wrapped error, process exit code,
// and stderr content.
package errclass

import (
	"context"
	"errors"
	"os"
	"strings"
)

// Kind is the classified failure category of one action.
type Kind int

const (
	MutationFailed Kind = iota // external command non-zero exit / write error
	PermissionDenied
	TargetNotFound
	SnapshotFailed // fatal for the action, mutation never attempted
	TimeoutExceeded
)

func (k Kind) String() string {
	switch k {
	case PermissionDenied:
		return "PERMISSION_DENIED"
	case TargetNotFound:
		return "TARGET_NOT_FOUND"
	case SnapshotFailed:
		return "SNAPSHOT_FAILED"
	case TimeoutExceeded:
		return "TIMEOUT_EXCEEDED"
	default:
		return "MUTATION_FAILED"
	}
}

var permissionKeywords = []string{
	"permission denied",
	"operation not permitted",
	"access denied",
	"interactive authentication required",
}

var notFoundKeywords = []string{
	"not found",
	"no such file",
	"does not exist",
	"unknown key",
	"unable to locate package",
}

// Classify determines the failure kind from the error chain and, when the
// failure came from an external command, its stderr.
func Classify(err error, stderr string) Kind {
	if err == nil {
		return MutationFailed
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return TimeoutExceeded
	}
	if errors.Is(err, os.ErrPermission) {
		return PermissionDenied
	}
	if errors.Is(err, os.ErrNotExist) {
		return TargetNotFound
	}

	lower := strings.ToLower(err.Error() + "\n" + stderr)
	for _, kw := range permissionKeywords {
		if strings.Contains(lower, kw) {
			return PermissionDenied
		}
	}
	for _, kw := range notFoundKeywords {
		if strings.Contains(lower, kw) {
			return TargetNotFound
		}
	}
	return MutationFailed
}
