//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the daemon in its own process group so signals
// reach its children too.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}
