// Package firstboot stages the operator supplied first boot hook so the
// low-level installer can place it on the target system.
package firstboot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"autoinst/internal/answer"
	"autoinst/internal/config"
	"autoinst/internal/httpclient"
)

// MaxHookSize caps the accepted hook size. Anything larger is almost
// certainly not the intended script.
const MaxHookSize = 1024 * 1024

var httpGet = httpclient.Get

// Fetch obtains the hook content from the source the answer selected.
func Fetch(cfg *config.Config, info *answer.FirstBootHookInfo) ([]byte, error) {
	switch info.Source {
	case answer.FirstBootFromISO:
		path := cfg.FirstBootSourcePath()
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading '%s': %w", path, err)
		}
		return checkSize(data)
	case answer.FirstBootFromURL:
		body, err := httpGet(info.URL, info.CertFingerprint)
		if err != nil {
			return nil, fmt.Errorf("fetching first boot hook: %w", err)
		}
		return checkSize([]byte(body))
	}
	return nil, fmt.Errorf("unknown first boot source '%s'", info.Source)
}

func checkSize(data []byte) ([]byte, error) {
	if len(data) > MaxHookSize {
		return nil, fmt.Errorf("first boot hook is larger than %d bytes", MaxHookSize)
	}
	return data, nil
}

// Prepare fetches the hook and installs it where the low-level
// installer picks it up, returning that path. Without a [first-boot]
// section there is nothing to do.
func Prepare(cfg *config.Config, info *answer.FirstBootHookInfo) (string, error) {
	if info == nil {
		return "", nil
	}
	data, err := Fetch(cfg, info)
	if err != nil {
		return "", err
	}
	path := cfg.FirstBootHookPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating '%s': %w", filepath.Dir(path), err)
	}
	// The hook runs as a script on the installed system.
	if err := os.WriteFile(path, data, 0700); err != nil {
		return "", fmt.Errorf("writing '%s': %w", path, err)
	}
	logrus.Infof("prepared first boot hook at %s", path)
	return path, nil
}
