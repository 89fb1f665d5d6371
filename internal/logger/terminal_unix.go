//go:build linux || darwin

package logger

import "golang.org/x/sys/unix"

// isTerminal reports whether fd is attached to a terminal, which decides
// whether the text handler emits ANSI colors.
func isTerminal(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), ioctlReadTermios)
	return err == nil
}
