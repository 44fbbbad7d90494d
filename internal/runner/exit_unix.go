//go:build !windows

package runner

import (
	"os"
	"syscall"
)

func exitStatus(ps *os.ProcessState) int {
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ps.ExitCode()
}

func interrupt(p *os.Process, sig os.Signal) error {
	return p.Signal(sig)
}
