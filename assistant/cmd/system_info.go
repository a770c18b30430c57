package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"autoinst/internal/config"
	"autoinst/internal/errors"
	"autoinst/internal/setup"
	"autoinst/internal/sysinfo"
)

// systemInfoCmd represents the system-info command
var systemInfoCmd = &cobra.Command{
	Use:   "system-info",
	Short: "Prints the system report sent to the post-installation webhook",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return errors.E("system-info", err)
		}
		env, err := setup.LoadAll(cfg)
		if err != nil {
			return errors.E("system-info", err)
		}
		report, err := sysinfo.Collect(env).JSON()
		if err != nil {
			return errors.E("system-info", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), report)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(systemInfoCmd)
}
