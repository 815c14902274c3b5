package main

import (
	"time"

	"github.com/dmatts/retune/internal/applier"
	"github.com/dmatts/retune/internal/config"
	"github.com/dmatts/retune/internal/hostexec"
	"github.com/dmatts/retune/internal/pkgmgr"
	"github.com/dmatts/retune/internal/services"
	"github.com/dmatts/retune/internal/sysctl"
)

// buildEnv wires the host boundaries from config.
func buildEnv(cfg *config.Config) applier.Env {
	runner := hostexec.New(time.Duration(cfg.ActionTimeout) * time.Second)
	return applier.Env{
		Services: services.New(runner, cfg.Tools.Systemctl),
		Sysctl:   sysctl.New(runner, cfg.Tools.Sysctl),
		Packages: pkgmgr.New(runner, cfg.Tools.AptGet),
		Runner:   runner,
	}
}
