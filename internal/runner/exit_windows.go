//go:build windows

package runner

import "os"

func exitStatus(ps *os.ProcessState) int {
	return ps.ExitCode()
}

// Windows cannot deliver signals to another process.
func interrupt(p *os.Process, _ os.Signal) error {
	return p.Kill()
}
