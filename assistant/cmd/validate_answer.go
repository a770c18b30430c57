package cmd

import (
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"autoinst/internal/answer"
	"autoinst/internal/errors"
	"autoinst/internal/ssh"
)

// validateAnswerCmd represents the validate-answer command
var validateAnswerCmd = &cobra.Command{
	Use:   "validate-answer <file>",
	Short: "Checks an answer file for structural and semantic problems",
	Long: `Parses an answer file exactly like the installer would at boot and
reports the first problem found, or a summary of the resolved settings.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return errors.E("validate-answer", err)
		}
		ans, err := answer.Parse(data)
		if err != nil {
			return errors.E("validate-answer", err)
		}

		color.Green("✔ %s is a valid answer file", args[0])

		table := tablewriter.NewWriter(os.Stdout)
		table.Header([]string{"SETTING", "VALUE"})
		table.Append([]string{"FQDN", ans.Global.FQDN.String()})
		table.Append([]string{"Country", ans.Global.Country})
		table.Append([]string{"Timezone", ans.Global.Timezone})
		table.Append([]string{"Keyboard", string(ans.Global.Keyboard)})
		table.Append([]string{"Filesystem", ans.Disks.FsType.String()})
		table.Append([]string{"Disk selection", diskSummary(&ans.Disks)})
		table.Append([]string{"Network", networkSummary(&ans.Network)})
		table.Append([]string{"First boot hook", firstBootSummary(ans)})
		for _, key := range ans.Global.RootSSHKeys {
			fp, err := ssh.Fingerprint(key)
			if err != nil {
				fp = key
			}
			table.Append([]string{"Root SSH key", fp})
		}
		table.Render()
		return nil
	},
}

func diskSummary(disks *answer.Disks) string {
	if len(disks.DiskSelection.List) > 0 {
		return strings.Join(disks.DiskSelection.List, ", ")
	}
	return "by filter"
}

func networkSummary(network *answer.Network) string {
	if network.Manual == nil {
		return "DHCP"
	}
	return "static " + network.Manual.CIDR.String()
}

func firstBootSummary(ans *answer.Answer) string {
	if ans.FirstBoot == nil {
		return "none"
	}
	return string(ans.FirstBoot.Source)
}

func init() {
	rootCmd.AddCommand(validateAnswerCmd)
}
