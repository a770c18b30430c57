package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"autoinst/internal/config"
	"autoinst/internal/errors"
	"autoinst/internal/filter"
	"autoinst/internal/setup"
)

var matchAll bool

// deviceMatchCmd represents the device-match command
var deviceMatchCmd = &cobra.Command{
	Use:   "device-match <disk|nic> <key=pattern>...",
	Short: "Shows which devices a property filter would select",
	Long: `Evaluates a udev property filter against the devices of the running
system, exactly like the installer evaluates the 'filter' table of an
answer file. Patterns support the usual shell wildcards.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := devicesOfType(args[0])
		if err != nil {
			return errors.E("device-match", err)
		}

		filters := map[string]string{}
		for _, arg := range args[1:] {
			key, pattern, found := strings.Cut(arg, "=")
			if !found || key == "" {
				return errors.E("device-match", fmt.Errorf("filter argument '%s' is not of the form key=pattern", arg))
			}
			filters[key] = pattern
		}

		matches := filter.MatchedDevices(filters, devices, matchAll)
		if len(matches) == 0 {
			color.Yellow("No devices matched.")
			return nil
		}
		for _, name := range matches {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

// devicesOfType loads the udev dump and selects the requested class.
func devicesOfType(devType string) (map[string]map[string]string, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	env, err := setup.LoadAll(cfg)
	if err != nil {
		return nil, err
	}
	switch devType {
	case "disk":
		return env.Udev.Disks, nil
	case "nic":
		return env.Udev.Nics, nil
	}
	return nil, fmt.Errorf("device type '%s' is not one of 'disk' or 'nic'", devType)
}

func init() {
	deviceMatchCmd.Flags().BoolVar(&matchAll, "all", false, "require every filter to match instead of any")
	rootCmd.AddCommand(deviceMatchCmd)
}
