//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// fatal reports inotify and descriptor exhaustion.
func fatal(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
