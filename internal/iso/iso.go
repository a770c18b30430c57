// Package iso bakes automatic installation artifacts into an install
// image so it boots straight into the unattended flow.
package iso

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"autoinst/internal/config"
	"autoinst/internal/fetch"
	"autoinst/internal/runner"
	"autoinst/internal/util"
)

// Options describes one preparation run.
type Options struct {
	// SourceISO is the unmodified install image.
	SourceISO string
	// Output is the image to produce. Derived from SourceISO and the
	// fetch mode when empty.
	Output string
	// Settings selects how the booted installer obtains its answer.
	Settings *fetch.Settings
	// AnswerFile is baked into the image in iso mode.
	AnswerFile string
	// FirstBootHook is an optional script shipped on the medium.
	FirstBootHook string
}

// modeFile is the wire shape of auto-installer-mode.toml.
type modeFile struct {
	Mode fetch.Mode  `toml:"mode"`
	HTTP httpSection `toml:"http,omitempty"`
}

type httpSection struct {
	URL             string `toml:"url,omitempty"`
	CertFingerprint string `toml:"cert_fingerprint,omitempty"`
}

// Prepare stages the selected artifacts and injects them into a copy of
// the source image, returning the path of the prepared ISO. The source
// is never modified.
var Prepare = func(opts *Options) (string, error) {
	if !util.FileExists(opts.SourceISO) {
		return "", fmt.Errorf("input ISO '%s' does not exist", opts.SourceISO)
	}
	if opts.Settings == nil || opts.Settings.Mode == "" {
		return "", fmt.Errorf("no fetch mode selected")
	}
	if opts.Settings.Mode == fetch.ModeISO && opts.AnswerFile == "" {
		return "", fmt.Errorf("an answer file is required for '%s' mode", fetch.ModeISO)
	}
	if opts.Settings.Mode != fetch.ModeISO && opts.AnswerFile != "" {
		return "", fmt.Errorf("an answer file can only be baked in for '%s' mode", fetch.ModeISO)
	}

	output := opts.Output
	if output == "" {
		output = derivedOutput(opts.SourceISO, opts.Settings.Mode)
	}

	staging, err := os.MkdirTemp("", "autoinst-iso-")
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	staged, err := stage(staging, opts)
	if err != nil {
		return "", err
	}

	logrus.Infof("copying %s to %s", opts.SourceISO, output)
	if err := util.CopyFile(opts.SourceISO, output, 0644); err != nil {
		return "", fmt.Errorf("copying ISO: %w", err)
	}

	// replay keeps the existing boot records intact while the mapped
	// files are added on top.
	args := []string{"-boot_image", "any", "replay", "-dev", output}
	for _, name := range staged {
		args = append(args, "-map", filepath.Join(staging, name), "/"+name)
	}
	if err := runner.Run(exec.Command("xorriso", args...)); err != nil {
		os.Remove(output)
		return "", fmt.Errorf("injecting files into '%s': %w", output, err)
	}
	logrus.Infof("prepared ISO at %s", output)
	return output, nil
}

// stage writes the mode file and copies the optional artifacts into dir,
// returning the names to map into the image.
func stage(dir string, opts *Options) ([]string, error) {
	mf := modeFile{Mode: opts.Settings.Mode}
	if opts.Settings.Mode == fetch.ModeHTTP {
		mf.HTTP = httpSection(opts.Settings.HTTP)
	}
	f, err := os.Create(filepath.Join(dir, config.ModeFile))
	if err != nil {
		return nil, fmt.Errorf("staging mode file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(mf); err != nil {
		f.Close()
		return nil, fmt.Errorf("encoding mode file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	staged := []string{config.ModeFile}

	if opts.AnswerFile != "" {
		if err := util.CopyFile(opts.AnswerFile, filepath.Join(dir, config.AnswerFile), 0644); err != nil {
			return nil, fmt.Errorf("staging answer file: %w", err)
		}
		staged = append(staged, config.AnswerFile)
	}
	if opts.FirstBootHook != "" {
		if err := util.CopyFile(opts.FirstBootHook, filepath.Join(dir, config.FirstBootFile), 0755); err != nil {
			return nil, fmt.Errorf("staging first boot hook: %w", err)
		}
		staged = append(staged, config.FirstBootFile)
	}
	return staged, nil
}

func derivedOutput(source string, mode fetch.Mode) string {
	ext := filepath.Ext(source)
	return fmt.Sprintf("%s-auto-from-%s%s", strings.TrimSuffix(source, ext), mode, ext)
}
