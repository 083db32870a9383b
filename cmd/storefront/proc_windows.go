//go:build windows

package main

import (
	"os"
	"os/exec"
	"syscall"
)

// configureDaemonProcess detaches the daemon from the parent console.
func configureDaemonProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// terminate stops the daemon. Windows has no SIGTERM for other processes.
func terminate(p *os.Process) error {
	return p.Kill()
}
