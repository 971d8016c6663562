package process

import (
	"os"
	"syscall"
)

// IsProcessAlive reports whether a pid refers to a live process. The
// pidfile uses this to tell a running daemon apart from a stale file left
// by a crash.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	// FindProcess never fails on Unix; the signal is the real check.
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 checks for existence without delivering anything. ESRCH
	// means gone; EPERM means alive but owned by someone else.
	err = process.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}
