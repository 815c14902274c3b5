package main

import (
	"fmt"

	"github.com/dmatts/retune/internal/precheck"
	"github.com/spf13/cobra"
)

var doctorJSON bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment for problems",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		runner := precheck.NewRunner()
		runner.Add(precheck.BinaryCheck{Binary: cfg.Tools.Systemctl})
		runner.Add(precheck.BinaryCheck{Binary: cfg.Tools.Sysctl})
		runner.Add(precheck.BinaryCheck{Binary: cfg.Tools.AptGet, Optional: true})
		runner.Add(precheck.StateDirCheck{BaseDir: cfg.BaseDir})
		runner.Add(precheck.RunIndexCheck{DBPath: cfg.DBPath()})
		runner.Add(precheck.LockCheck{BaseDir: cfg.BaseDir})
		runner.Add(precheck.PrivilegeCheck{})

		result := runner.Run()
		if doctorJSON {
			out, err := precheck.FormatRunResultJSON(result)
			if err != nil {
				return err
			}
			fmt.Println(out)
		} else {
			fmt.Print(precheck.FormatRunResult(result))
		}
		if !result.AllPassed {
			return fmt.Errorf("environment problems found")
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "emit JSON")
	rootCmd.AddCommand(doctorCmd)
}
