// Package pidfile guards against two installer instances touching the
// same disks at once.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Acquire writes the current pid to path after making sure no other
// live process holds it. A file left behind by a crashed run is taken
// over. The caller must Release once the installation is over.
func Acquire(path string) error {
	pid, err := read(path)
	switch {
	case err == nil && pid != os.Getpid() && isAlive(pid):
		return fmt.Errorf("another installer instance is running with pid %d", pid)
	case err == nil:
		logrus.Debugf("taking over stale pidfile of pid %d", pid)
	case !os.IsNotExist(err):
		// Unreadable content counts as stale too.
		logrus.Debugf("replacing unreadable pidfile: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating '%s': %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		return fmt.Errorf("writing pidfile '%s': %w", path, err)
	}
	return nil
}

// Release removes the pidfile. Releasing a file that is already gone is
// not an error.
func Release(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("removing pidfile '%s': %v", path, err)
	}
}

func read(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid in pidfile '%s': %w", path, err)
	}
	return pid, nil
}

// isAlive probes the process with signal 0, which performs the
// existence and permission checks without delivering anything.
func isAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
