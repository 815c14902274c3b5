// Package action defines the declarative unit of system change: one
// idempotent, reversible Action plus the Outcome vocabulary used by the
// applier and revert planner.
package action

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the type of system change an Action performs.
type Kind string

const (
	WriteFile       Kind = "write_file"
	ServiceState    Kind = "service_state"
	Sysctl          Kind = "sysctl"
	RunCommand      Kind = "run_command"
	InstallPackages Kind = "install_packages"
)

// KnownKinds lists every Kind the engine can execute, in no particular order.
var KnownKinds = []Kind{WriteFile, ServiceState, Sysctl, RunCommand, InstallPackages}

// FileSpec describes a write_file action target.
type FileSpec struct {
	Path    string `yaml:"path" json:"path"`
	Content string `yaml:"content" json:"content"`
	Mode    string `yaml:"mode,omitempty" json:"mode,omitempty"` // octal string, default 0644
}

// FileMode parses the octal mode string, defaulting to 0644.
func (f FileSpec) FileMode() (uint32, error) {
	if f.Mode == "" {
		return 0o644, nil
	}
	m, err := strconv.ParseUint(f.Mode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("action: invalid file mode %q: %w", f.Mode, err)
	}
	return uint32(m), nil
}

// ServiceSpec describes a service_state action target. Nil fields mean
// "leave as-is"; at least one must be set.
type ServiceSpec struct {
	Unit    string `yaml:"unit" json:"unit"`
	Enabled *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Active  *bool  `yaml:"active,omitempty" json:"active,omitempty"`
	Masked  *bool  `yaml:"masked,omitempty" json:"masked,omitempty"`
}

// SysctlSpec describes a sysctl action target.
type SysctlSpec struct {
	Key   string `yaml:"key" json:"key"`
	Value string `yaml:"value" json:"value"`
}

// CommandSpec describes a run_command action. Undo, when present, is the
// declared inverse; without it the action reverts as a recorded no-op.
// Check, when present, is run first: exit 0 means the desired state already
// holds and the command is skipped.
type CommandSpec struct {
	Argv  []string `yaml:"argv" json:"argv"`
	Undo  []string `yaml:"undo,omitempty" json:"undo,omitempty"`
	Check []string `yaml:"check,omitempty" json:"check,omitempty"`
}

// PackagesSpec describes an install_packages action.
type PackagesSpec struct {
	Names []string `yaml:"names" json:"names"`
}

// Action is one declared, idempotent, reversible system-configuration
// change. Exactly one of the kind-specific spec fields is populated,
// matching Kind.
type Action struct {
	Key        string `yaml:"key,omitempty" json:"key"`
	Kind       Kind   `yaml:"kind" json:"kind"`
	BestEffort bool   `yaml:"best_effort,omitempty" json:"best_effort,omitempty"`

	File     *FileSpec     `yaml:"file,omitempty" json:"file,omitempty"`
	Service  *ServiceSpec  `yaml:"service,omitempty" json:"service,omitempty"`
	Sysctl   *SysctlSpec   `yaml:"sysctl,omitempty" json:"sysctl,omitempty"`
	Command  *CommandSpec  `yaml:"command,omitempty" json:"command,omitempty"`
	Packages *PackagesSpec `yaml:"packages,omitempty" json:"packages,omitempty"`
}

// Fatal reports whether a failure of this action aborts the run.
func (a *Action) Fatal() bool { return !a.BestEffort }

// Target returns the primary target of the action (path, unit, key, or
// command name) for display and default keys.
func (a *Action) Target() string {
	switch a.Kind {
	case WriteFile:
		if a.File != nil {
			return a.File.Path
		}
	case ServiceState:
		if a.Service != nil {
			return a.Service.Unit
		}
	case Sysctl:
		if a.Sysctl != nil {
			return a.Sysctl.Key
		}
	case RunCommand:
		if a.Command != nil && len(a.Command.Argv) > 0 {
			return a.Command.Argv[0]
		}
	case InstallPackages:
		if a.Packages != nil {
			return strings.Join(a.Packages.Names, ",")
		}
	}
	return ""
}

// DefaultKey derives the action identity when the profile does not declare
// one, e.g. "sysctl:vm.swappiness".
func (a *Action) DefaultKey() string {
	switch a.Kind {
	case WriteFile:
		return "file:" + a.Target()
	case ServiceState:
		return "service:" + a.Target()
	case Sysctl:
		return "sysctl:" + a.Target()
	case RunCommand:
		return "command:" + a.Target()
	case InstallPackages:
		return "packages:" + a.Target()
	}
	return string(a.Kind) + ":" + a.Target()
}

// Validate checks that the action is well-formed: a known kind, the matching
// spec present, and sane targets (absolute file paths, non-empty units/keys).
func (a *Action) Validate() error {
	switch a.Kind {
	case WriteFile:
		if a.File == nil {
			return fmt.Errorf("action %q: write_file requires a file spec", a.Key)
		}
		if !strings.HasPrefix(a.File.Path, "/") {
			return fmt.Errorf("action %q: file path %q must be absolute", a.Key, a.File.Path)
		}
		if _, err := a.File.FileMode(); err != nil {
			return err
		}
	case ServiceState:
		if a.Service == nil || a.Service.Unit == "" {
			return fmt.Errorf("action %q: service_state requires a unit", a.Key)
		}
		if a.Service.Enabled == nil && a.Service.Active == nil && a.Service.Masked == nil {
			return fmt.Errorf("action %q: service_state declares no desired state", a.Key)
		}
	case Sysctl:
		if a.Sysctl == nil || a.Sysctl.Key == "" {
			return fmt.Errorf("action %q: sysctl requires a key", a.Key)
		}
	case RunCommand:
		if a.Command == nil || len(a.Command.Argv) == 0 {
			return fmt.Errorf("action %q: run_command requires argv", a.Key)
		}
	case InstallPackages:
		if a.Packages == nil || len(a.Packages.Names) == 0 {
			return fmt.Errorf("action %q: install_packages requires names", a.Key)
		}
	default:
		return fmt.Errorf("action %q: unknown kind %q", a.Key, a.Kind)
	}
	return nil
}
