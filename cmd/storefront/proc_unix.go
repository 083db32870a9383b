//go:build unix

package main

import (
	"os"
	"os/exec"
	"syscall"
)

// configureDaemonProcess puts the daemon in its own process group so it
// outlives the shell that started it.
func configureDaemonProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate asks the daemon to shut down gracefully.
func terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
