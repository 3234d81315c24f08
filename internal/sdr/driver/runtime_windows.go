//go:build windows

package driver

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// FindRuntime resolves the sweep tool binary. PATH is searched first, then
// bin/*/windows/x64 next to the executable and the working directory.
func FindRuntime(runtime string) (string, error) {
	if binPath, err := exec.LookPath(runtime); err == nil {
		return binPath, nil
	}

	var lookup []string

	exePath, err := os.Executable()
	if err != nil {
		return "", NewSpawnError(runtime, "failed to get executable path", err)
	}
	lookup = append(lookup, filepath.Dir(exePath))

	wd, err := os.Getwd()
	if err != nil {
		return "", NewSpawnError(runtime, "failed to get current working directory", err)
	}
	lookup = append(lookup, wd)

	name := filepath.Base(runtime)
	for _, dir := range lookup {
		matches, err := filepath.Glob(filepath.Join(dir, "bin", "*", "windows", "x64", fmt.Sprintf("%s.exe", name)))
		if err != nil || len(matches) == 0 {
			continue
		}

		if _, err = os.Stat(matches[0]); err != nil {
			continue
		}

		return matches[0], nil
	}

	return "", NewSpawnError(runtime, "binary not found", errors.New("file does not exist"))
}
