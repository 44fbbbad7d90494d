//go:build windows

package forwarder

import "os/exec"

// Windows has no process groups to signal; the helper is killed
// directly and the grace period only bounds the wait.
func setProcessGroup(*exec.Cmd) {}

func terminateGroup(cmd *exec.Cmd) error { return cmd.Process.Kill() }

func killGroup(cmd *exec.Cmd) error { return cmd.Process.Kill() }
