package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"autoinst/internal/answer"
	"autoinst/internal/errors"
	"autoinst/internal/fetch"
	"autoinst/internal/iso"
)

var (
	fetchFrom       string
	answerFile      string
	answerURL       string
	certFingerprint string
	outputISO       string
	firstBootHook   string
)

// prepareISOCmd represents the prepare-iso command
var prepareISOCmd = &cobra.Command{
	Use:   "prepare-iso <source-iso>",
	Short: "Bakes automatic installation settings into an install ISO",
	Long: `Produces a copy of an install ISO that boots straight into the
unattended installation, fetching its answer file from the configured
source. The source image is left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := settingsFromFlags()
		if err != nil {
			return errors.E("prepare-iso", err)
		}

		if answerFile != "" {
			data, err := os.ReadFile(answerFile)
			if err != nil {
				return errors.E("prepare-iso", err)
			}
			if _, err := answer.Parse(data); err != nil {
				return errors.E("prepare-iso", fmt.Errorf("answer file is not valid: %w", err))
			}
		}

		color.Cyan("i Preparing ISO from %s", args[0])
		output, err := iso.Prepare(&iso.Options{
			SourceISO:     args[0],
			Output:        outputISO,
			Settings:      settings,
			AnswerFile:    answerFile,
			FirstBootHook: firstBootHook,
		})
		if err != nil {
			return errors.E("prepare-iso", err)
		}
		color.Green("✔ Prepared ISO written to %s", output)
		return nil
	},
}

func settingsFromFlags() (*fetch.Settings, error) {
	var mode fetch.Mode
	if err := mode.UnmarshalText([]byte(fetchFrom)); err != nil {
		return nil, err
	}
	if mode != fetch.ModeHTTP && (answerURL != "" || certFingerprint != "") {
		return nil, fmt.Errorf("--url and --cert-fingerprint are only valid with '--fetch-from http'")
	}
	return &fetch.Settings{
		Mode: mode,
		HTTP: fetch.HTTPOptions{URL: answerURL, CertFingerprint: certFingerprint},
	}, nil
}

func init() {
	prepareISOCmd.Flags().StringVar(&fetchFrom, "fetch-from", "iso", "answer source the booted installer uses: iso, http or partition")
	prepareISOCmd.Flags().StringVar(&answerFile, "answer-file", "", "answer file to bake into the ISO (iso mode)")
	prepareISOCmd.Flags().StringVar(&answerURL, "url", "", "URL the installer fetches the answer from (http mode)")
	prepareISOCmd.Flags().StringVar(&certFingerprint, "cert-fingerprint", "", "SHA-256 fingerprint pinning the answer server certificate")
	prepareISOCmd.Flags().StringVar(&outputISO, "output", "", "path of the prepared ISO (default: derived from the source name)")
	prepareISOCmd.Flags().StringVar(&firstBootHook, "on-first-boot", "", "script to run on the first boot of the installed system")
	rootCmd.AddCommand(prepareISOCmd)
}
