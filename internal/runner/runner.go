package runner

import (
	"errors"
	"fmt"
	"os/exec"
)

// Run executes a command and returns an error with the combined output if
// it fails. It is a variable so tests can substitute it.
var Run = func(cmd *exec.Cmd) error {
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("command failed: %s\n%s", cmd.String(), string(output))
	}
	return nil
}

// Output executes a command and returns its stdout. On failure stderr is
// folded into the error.
var Output = func(cmd *exec.Cmd) (string, error) {
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("command failed: %s\n%s", cmd.String(), string(exitErr.Stderr))
		}
		return "", fmt.Errorf("command failed: %s: %w", cmd.String(), err)
	}
	return string(out), nil
}
