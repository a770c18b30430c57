package cmd

import (
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"autoinst/internal/errors"
)

var deviceType string

// deviceInfoCmd represents the device-info command
var deviceInfoCmd = &cobra.Command{
	Use:   "device-info",
	Short: "Lists the udev properties the installer can filter on",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := devicesOfType(deviceType)
		if err != nil {
			return errors.E("device-info", err)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header([]string{"DEVICE", "PROPERTY", "VALUE"})

		names := make([]string, 0, len(devices))
		for name := range devices {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			props := devices[name]
			keys := make([]string, 0, len(props))
			for key := range props {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				table.Append([]string{name, key, props[key]})
			}
		}
		table.Render()
		return nil
	},
}

func init() {
	deviceInfoCmd.Flags().StringVar(&deviceType, "type", "disk", "device class to list: disk or nic")
	rootCmd.AddCommand(deviceInfoCmd)
}
