// Package shared holds helpers common to the hypervisor backends.
package shared

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/process"
	"github.com/spf13/afero"
)

// PIDWriteToFile persists the pid of a spawned VM process.
func PIDWriteToFile(pid int, path string, fs afero.Fs) error {
	if err := afero.WriteFile(fs, path, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("writing pid file %s: %w", path, err)
	}

	return nil
}

// PIDReadFromFile reads a pid back from its file.
func PIDReadFromFile(path string, fs afero.Fs) (int, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return -1, fmt.Errorf("reading pid file %s: %w", path, err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return -1, fmt.Errorf("parsing pid file %s: %w", path, err)
	}

	return pid, nil
}

// ProcessAlive reports whether the process still exists in the host process
// table. Works on Windows too, where signal probing does not.
func ProcessAlive(pid int) bool {
	alive, err := process.PidExists(int32(pid))

	return err == nil && alive
}

// WaitForExit polls until the process disappears or the grace period is
// spent. Returns true if the process exited in time.
func WaitForExit(pid int, grace time.Duration) bool {
	deadline := time.Now().Add(grace)

	for time.Now().Before(deadline) {
		if !ProcessAlive(pid) {
			return true
		}

		time.Sleep(200 * time.Millisecond)
	}

	return !ProcessAlive(pid)
}
