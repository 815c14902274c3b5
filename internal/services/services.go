// Package services is the systemd boundary: querying and setting unit
// enablement, activity, and mask state through systemctl.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmatts/retune/internal/hostexec"
)

// State is the observed state of one unit.
type State struct {
	Exists  bool `json:"exists"`
	Enabled bool `json:"enabled"`
	Active  bool `json:"active"`
	Masked  bool `json:"masked"`
}

// Client wraps systemctl over a hostexec.Runner.
type Client struct {
	runner hostexec.Runner
	bin    string
}

// New returns a Client using the given runner. bin defaults to "systemctl".
func New(runner hostexec.Runner, bin string) *Client {
	if bin == "" {
		bin = "systemctl"
	}
	return &Client{runner: runner, bin: bin}
}

// Exists reports whether the unit file is known to systemd.
func (c *Client) Exists(ctx context.Context, unit string) (bool, error) {
	res, err := c.runner.Run(ctx, c.bin, "list-unit-files", "--no-legend", unit)
	if err != nil {
		// systemctl exits non-zero when the pattern matches nothing on
		// some versions; empty output is the reliable signal.
		if res.TimedOut {
			return false, err
		}
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}

// Query returns the full observed state of a unit.
func (c *Client) Query(ctx context.Context, unit string) (State, error) {
	var st State
	exists, err := c.Exists(ctx, unit)
	if err != nil {
		return st, err
	}
	st.Exists = exists
	if !exists {
		return st, nil
	}

	// is-enabled exits non-zero for "disabled" and "masked"; the stdout
	// token is authoritative.
	res, _ := c.runner.Run(ctx, c.bin, "is-enabled", unit)
	if res.TimedOut {
		return st, fmt.Errorf("services: is-enabled %s timed out", unit)
	}
	switch strings.TrimSpace(res.Stdout) {
	case "enabled", "enabled-runtime":
		st.Enabled = true
	case "masked", "masked-runtime":
		st.Masked = true
	}

	res, _ = c.runner.Run(ctx, c.bin, "is-active", unit)
	if res.TimedOut {
		return st, fmt.Errorf("services: is-active %s timed out", unit)
	}
	st.Active = strings.TrimSpace(res.Stdout) == "active"

	return st, nil
}

// SetEnabled enables or disables a unit.
func (c *Client) SetEnabled(ctx context.Context, unit string, enabled bool) error {
	verb := "disable"
	if enabled {
		verb = "enable"
	}
	if _, err := c.runner.Run(ctx, c.bin, verb, unit); err != nil {
		return fmt.Errorf("services: %s %s: %w", verb, unit, err)
	}
	return nil
}

// SetActive starts or stops a unit.
func (c *Client) SetActive(ctx context.Context, unit string, active bool) error {
	verb := "stop"
	if active {
		verb = "start"
	}
	if _, err := c.runner.Run(ctx, c.bin, verb, unit); err != nil {
		return fmt.Errorf("services: %s %s: %w", verb, unit, err)
	}
	return nil
}

// SetMasked masks or unmasks a unit.
func (c *Client) SetMasked(ctx context.Context, unit string, masked bool) error {
	verb := "unmask"
	if masked {
		verb = "mask"
	}
	if _, err := c.runner.Run(ctx, c.bin, verb, unit); err != nil {
		return fmt.Errorf("services: %s %s: %w", verb, unit, err)
	}
	return nil
}
