//go:build !linux

package rt

// LockMemory is a no-op outside Linux.
func LockMemory() error { return nil }

func Supported() bool { return false }
