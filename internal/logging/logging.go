// Package logging configures the process-wide logger for the installer
// binaries. Output always goes to stderr; stdout is reserved for machine
// readable results such as the fetched answer document.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Init sets up the global logger. When path is not empty, all output is
// duplicated into that file so the full run can be inspected from the live
// environment after the fact. AUTOINST_DEBUG enables debug level output.
func Init(path string) error {
	level := logrus.InfoLevel
	if os.Getenv("AUTOINST_DEBUG") != "" {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)

	out := io.Writer(os.Stderr)
	colors := term.IsTerminal(int(os.Stderr.Fd()))
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("could not open log file %s: %w", path, err)
		}
		out = io.MultiWriter(os.Stderr, f)
		// Escape sequences would end up in the file as well.
		colors = false
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   !colors,
	})
	logrus.SetOutput(out)
	return nil
}
