//go:build !windows

package driver

import (
	"errors"
	"os/exec"
)

// FindRuntime resolves the sweep tool binary. A path is checked as-is,
// a bare name is looked up in PATH.
func FindRuntime(runtime string) (string, error) {
	binPath, err := exec.LookPath(runtime)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", NewSpawnError(runtime, "not found in PATH", err)
		}
		return "", NewSpawnError(runtime, "failed to locate binary", err)
	}

	return binPath, nil
}
