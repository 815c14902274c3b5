package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmatts/retune/internal/config"
	"github.com/spf13/cobra"
)

// errPartialFailure signals exit code 2: the run finished but best-effort
// actions failed.
var errPartialFailure = errors.New("completed with best-effort failures")

var configPath string

var rootCmd = &cobra.Command{
	Use:          "retune",
	Short:        "Declarative, reversible system tuning",
	Long:         "retune applies an ordered list of idempotent system-configuration actions, snapshots prior state before every mutation, and can revert any recorded run.",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("retune v0.1.0")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <base>/config.yaml)")
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the config file path and loads it.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = filepath.Join(config.Default().BaseDir, "config.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errPartialFailure) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
