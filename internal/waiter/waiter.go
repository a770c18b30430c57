package waiter

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

var (
	// statPath is a variable to allow mocking of os.Stat in tests
	statPath = os.Stat

	pollInterval = 200 * time.Millisecond
)

// ForPath polls for a filesystem path until it exists or the timeout is
// reached. Device nodes and by-label symlinks show up asynchronously once
// udev has settled, which is what this rides out. The spinner stays on
// stderr so stdout remains clean for pipeline output.
func ForPath(path string, timeout time.Duration) error {
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = fmt.Sprintf(" Waiting for %s to appear...", path)
	s.Start()
	defer s.Stop()

	timeoutChan := time.After(timeout)
	for {
		select {
		case <-timeoutChan:
			s.FinalMSG = color.RedString("✖ Timed out waiting for %s\n", path)
			return fmt.Errorf("timed out waiting for %s", path)
		default:
			if _, err := statPath(path); err == nil {
				s.FinalMSG = color.GreenString("✔ %s is available.\n", path)
				return nil
			}
			time.Sleep(pollInterval)
		}
	}
}
