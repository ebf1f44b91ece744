package shared

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/afero"
)

// Launch spawns a VM process headless: stdin detached, stdout and stderr
// redirected to files, never a foreground window. completionFn is invoked
// exactly once from the reaper goroutine when the process exits.
func Launch(fs afero.Fs, bin string, args []string, stdoutPath, stderrPath string, completionFn func(error)) (*os.Process, error) {
	stdoutFile, err := fs.OpenFile(stdoutPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening stdout file %s: %w", stdoutPath, err)
	}

	stderrFile, err := fs.OpenFile(stderrPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		stdoutFile.Close()

		return nil, fmt.Errorf("opening stderr file %s: %w", stderrPath, err)
	}

	cmd := exec.Command(bin, args...)
	cmd.Stdout = stdoutFile
	cmd.Stderr = stderrFile
	cmd.Stdin = &bytes.Buffer{}

	if err := cmd.Start(); err != nil {
		stdoutFile.Close()
		stderrFile.Close()

		return nil, fmt.Errorf("starting %s: %w", bin, err)
	}

	// Reap the process and report the exit to the supervisor.
	go func() {
		waitErr := cmd.Wait()
		stdoutFile.Close()
		stderrFile.Close()

		if completionFn != nil {
			completionFn(waitErr)
		}
	}()

	return cmd.Process, nil
}
