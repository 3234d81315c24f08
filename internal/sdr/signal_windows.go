//go:build windows

package sdr

import (
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

// terminate stops the process. Windows has no SIGTERM equivalent for console
// tools, so this is a forced kill.
func terminate(p *os.Process) error {
	return p.Kill()
}

func kill(p *os.Process) error {
	return p.Kill()
}
