// Package sysctl is the kernel parameter boundary over the sysctl binary.
package sysctl

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmatts/retune/internal/hostexec"
)

// Client wraps the sysctl binary over a hostexec.Runner.
type Client struct {
	runner hostexec.Runner
	bin    string
}

// New returns a Client using the given runner. bin defaults to "sysctl".
func New(runner hostexec.Runner, bin string) *Client {
	if bin == "" {
		bin = "sysctl"
	}
	return &Client{runner: runner, bin: bin}
}

// Get reads the current runtime value of key. ok is false when the key does
// not exist on this kernel.
func (c *Client) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	res, err := c.runner.Run(ctx, c.bin, "-n", key)
	if err != nil {
		if res.TimedOut {
			return "", false, fmt.Errorf("sysctl: get %s: %w", key, err)
		}
		// Non-zero exit with empty stdout means the key is absent.
		return "", false, nil
	}
	return strings.TrimSpace(res.Stdout), true, nil
}

// Set writes a runtime kernel parameter.
func (c *Client) Set(ctx context.Context, key, value string) error {
	if _, err := c.runner.Run(ctx, c.bin, "-w", fmt.Sprintf("%s=%s", key, value)); err != nil {
		return fmt.Errorf("sysctl: set %s: %w", key, err)
	}
	return nil
}

// Reload re-applies all persisted sysctl configuration (sysctl --system).
func (c *Client) Reload(ctx context.Context) error {
	if _, err := c.runner.Run(ctx, c.bin, "--system"); err != nil {
		return fmt.Errorf("sysctl: reload: %w", err)
	}
	return nil
}
