// Package pkgmgr is the package manager boundary. Installs are best-effort
// by contract: each name succeeds or fails independently.
package pkgmgr

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmatts/retune/internal/hostexec"
)

// InstallResult is the per-name outcome of an install.
type InstallResult struct {
	Name             string `json:"name"`
	AlreadyInstalled bool   `json:"already_installed,omitempty"`
	Installed        bool   `json:"installed"`
	Err              string `json:"error,omitempty"`
}

// Client wraps apt-get/dpkg over a hostexec.Runner.
type Client struct {
	runner hostexec.Runner
	bin    string
}

// New returns a Client using the given runner. bin defaults to "apt-get".
func New(runner hostexec.Runner, bin string) *Client {
	if bin == "" {
		bin = "apt-get"
	}
	return &Client{runner: runner, bin: bin}
}

// Installed reports whether a package is currently installed.
func (c *Client) Installed(ctx context.Context, name string) (bool, error) {
	res, err := c.runner.Run(ctx, "dpkg-query", "-W", "-f", "${Status}", name)
	if err != nil {
		if res.TimedOut {
			return false, fmt.Errorf("pkgmgr: query %s: %w", name, err)
		}
		return false, nil
	}
	return strings.Contains(res.Stdout, "install ok installed"), nil
}

// Install installs each named package independently, returning one result
// per name. A failure for one name never stops the remaining installs.
func (c *Client) Install(ctx context.Context, names []string) []InstallResult {
	results := make([]InstallResult, 0, len(names))
	for _, name := range names {
		r := InstallResult{Name: name}
		if installed, err := c.Installed(ctx, name); err == nil && installed {
			r.AlreadyInstalled = true
			r.Installed = true
			results = append(results, r)
			continue
		}
		if _, err := c.runner.Run(ctx, c.bin, "install", "-y", name); err != nil {
			r.Err = err.Error()
		} else {
			r.Installed = true
		}
		results = append(results, r)
	}
	return results
}
