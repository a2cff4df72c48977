//go:build linux

// Package rt applies process-level settings that keep the pulse loop from
// stalling on page faults.
package rt

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// LockMemory locks current and future pages of the process into RAM.
func LockMemory() error {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return fmt.Errorf("mlockall: %w", err)
	}
	return nil
}

// Supported reports whether LockMemory does anything on this platform.
func Supported() bool { return true }
